package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Keyframe index
		"Building keyframe index":                                      "キーフレームインデックスを構築中",
		"Indexed %d keyframes in %d total frames":                      "総フレーム %[2]d 中 %[1]d 個のキーフレームを登録しました",
		"Index scan stopped early: %v":                                 "インデックス走査が途中で終了しました: %v",
		"Error seeking to beginning of file: %v":                       "ファイル先頭へのシークに失敗しました: %v",
		"Error seeking back to beginning of file: %v":                  "ファイル先頭への再シークに失敗しました: %v",
		"Packet-derived frame count %d differs from metadata count %d": "パケットから算出したフレーム数 %d がメタデータのフレーム数 %d と異なります",

		// Extractor
		"Video stream %d: codec=%s size=%dx%d":                          "映像ストリーム %d: コーデック=%s サイズ=%dx%d",
		"Failed to create decoder for codec %s: %v":                     "コーデック %s のデコーダ作成に失敗しました: %v",
		"Failed to open %s: %v":                                         "%s を開けませんでした: %v",
		"Decoding from keyframe %d to frame %d":                         "キーフレーム %d からフレーム %d までデコード中",
		"No keyframe found at or before frame %d":                       "フレーム %d 以前にキーフレームがありません",
		"Seek to keyframe %d failed (attempt %d/%d): %v":                "キーフレーム %d へのシークに失敗しました (試行 %d/%d): %v",
		"Giving up seeking to keyframe %d for frame %d":                 "フレーム %[2]d のためのキーフレーム %[1]d へのシークを断念しました",
		"Sequential read of frame %d failed (%s), falling back to seek": "フレーム %d の連続読み込みに失敗しました (%s)。シークに切り替えます",
		"Frame %d unavailable: %s":                                      "フレーム %d を取得できません: %s",
		"Frame size: %dx%d":                                             "フレームサイズ: %dx%d",
		"Frame %d is %dx%d, stream size is %dx%d":                       "フレーム %d のサイズは %dx%d ですが、ストリームのサイズは %dx%d です",
		"Converted frame %d has %d bytes, want %d":                      "変換後のフレーム %d は %d バイトです (期待値 %d)",

		// Decode loop
		"Error reading packet: %v":            "パケットの読み込みエラー: %v",
		"Error sending packet to decoder: %v": "デコーダへのパケット送信エラー: %v",
		"Error receiving frame: %v":           "フレーム受信エラー: %v",
		"Error draining decoder: %v":          "デコーダの排出エラー: %v",
		"Error converting frame %d: %v":       "フレーム %d の変換エラー: %v",

		// Grabber
		"Initializing grabber for %s":                          "%s のグラバーを初期化中",
		"Grabber ready: %dx%d, %d frames at %.3f fps":          "グラバー準備完了: %dx%d, %d フレーム, %.3f fps",
		"Failed to initialize grabber: %v":                     "グラバーの初期化に失敗しました: %v",
		"Failed to initialize grabber: frame size unavailable": "グラバーの初期化に失敗しました: フレームサイズを取得できません",

		// Export
		"Wrote %s":                                       "%s を書き出しました",
		"Wrote %d frames to %s":                          "%d フレームを %s に書き出しました",
		"Frame %d is empty, skipped":                     "フレーム %d は空のためスキップしました",
		"Rendering %d thumbnails with %d workers":        "%d 枚のサムネイルを %d ワーカーで描画中",
		"Frame %d is empty (%s), leaving its cell blank": "フレーム %d は空です (%s)。セルを空欄にします",
		"Contact sheet %dx%d with %d thumbnails":         "コンタクトシート %dx%d (サムネイル %d 枚)",
	})
}
