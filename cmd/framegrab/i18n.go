// Package main provides localization for the framegrab CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Random-access frame extraction from MP4 and MPEG-TS video.": "MP4およびMPEG-TS動画からランダムアクセスでフレームを抽出します。",

		// Version command
		"framegrab version %s": "framegrab バージョン %s",
		"libav backend: %s":    "libavバックエンド: %s",
		"ffmpeg backend: %s":   "ffmpegバックエンド: %s",
		"available":            "利用可能",
		"unavailable":          "利用不可",

		// Runtime messages
		"Interrupted, shutting down...":            "中断されました。シャットダウン中...",
		"Opened %s with %s backend (%s container)": "%s を %s バックエンドで開きました (%s コンテナ)",
		"Could not decode frame 0: %v":             "フレーム0をデコードできませんでした: %v",
		"Report saved to %s":                       "レポートを %s に保存しました",
		"Extracting %d frames from %s":             "%[2]s から %[1]d フレームを抽出中",
		"%d frames were empty and not written":     "%d フレームが空のため書き出されませんでした",
		"Contact sheet saved to %s":                "コンタクトシートを %s に保存しました",
		"Failed to write metrics: %v":              "メトリクスの書き込みに失敗しました: %v",
		"Metrics written to %s":                    "メトリクスを %s に書き込みました",
		"Camera %s (%s)":                           "カメラ %s (%s)",

		// Summary content
		"Stream Summary":      "ストリームサマリー",
		"Generated":           "生成日時",
		"Item":                "項目",
		"Value":               "値",
		"Source":              "入力",
		"File":                "ファイル",
		"File Size":           "ファイルサイズ",
		"Container":           "コンテナ",
		"Backend":             "バックエンド",
		"Stream":              "ストリーム",
		"Codec":               "コーデック",
		"Resolution":          "解像度",
		"Frame Rate":          "フレームレート",
		"Duration":            "再生時間",
		"Total Frames":        "総フレーム数",
		"Timestamped Packets": "タイムスタンプ付きパケット数",
		"Metadata frame count differs from the packet count.": "メタデータのフレーム数がパケット数と一致しません。",
		"Keyframe Index":     "キーフレームインデックス",
		"Indexed Keyframes":  "登録キーフレーム数",
		"Minimum Interval":   "最小間隔",
		"Positions":          "位置",
		"Camera":             "カメラ",
		"Model":              "モデル",
		"Type":               "種別",
		"Settings":           "設定",
		"Frame Count Source": "フレーム数の算出元",
		"Seek Retries":       "シーク再試行回数",
		"16-bit Scaling":     "16ビットスケーリング",
		"Yes":                "はい",
		"No":                 "いいえ",
		"None":               "なし",
		"N/A":                "不明",
		"Generated by":       "生成:",
	})
}
