package summarizer

import (
	"fmt"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// maxListedKeyframes caps the positions printed in the index section.
const maxListedKeyframes = 20

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) { f.translate = t }
}

// WithVersion sets the version printed in the footer.
func WithVersion(v string) MarkdownOption {
	return func(f *MarkdownFormatter) { f.version = v }
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
		version:   "dev",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Stream Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format("2006-01-02 15:04:05"))

	f.section(&b, "Source", [][2]string{
		{"File", s.Source.Path},
		{"File Size", formatBytes(s.Source.FileSize)},
		{"Container", orNA(t, s.Source.Container)},
		{"Backend", orNA(t, s.Source.Backend)},
	})

	resolution := t("N/A")
	if s.Stream.Width > 0 && s.Stream.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", s.Stream.Width, s.Stream.Height)
	}
	f.section(&b, "Stream", [][2]string{
		{"Codec", orNA(t, s.Stream.Codec)},
		{"Resolution", resolution},
		{"Frame Rate", fmt.Sprintf("%.3f fps", s.Stream.FrameRate)},
		{"Duration", fmt.Sprintf("%.2f s", s.Stream.DurationSec)},
		{"Total Frames", fmt.Sprint(s.Stream.TotalFrames)},
		{"Timestamped Packets", fmt.Sprint(s.Stream.PacketFrames)},
	})
	if s.Stream.TotalFrames != s.Stream.PacketFrames {
		fmt.Fprintf(&b, "> %s\n\n", t("Metadata frame count differs from the packet count."))
	}

	f.section(&b, "Keyframe Index", [][2]string{
		{"Indexed Keyframes", fmt.Sprint(len(s.Index.Keyframes))},
		{"Minimum Interval", fmt.Sprint(s.Index.MinInterval)},
		{"Positions", formatPositions(t, s.Index.Keyframes)},
	})

	f.section(&b, "Camera", [][2]string{
		{"Model", orNA(t, s.Camera.Model)},
		{"Type", orNA(t, s.Camera.Type)},
	})

	f.section(&b, "Settings", [][2]string{
		{"Frame Count Source", orNA(t, s.Settings.FrameCountSource)},
		{"Seek Retries", fmt.Sprint(s.Settings.SeekRetries)},
		{"16-bit Scaling", yesNo(t, s.Settings.ConvertTo16Bit)},
	})

	fmt.Fprintf(&b, "---\n\n%s framegrab %s\n", t("Generated by"), f.version)
	return b.String()
}

func (f *MarkdownFormatter) section(b *strings.Builder, title string, rows [][2]string) {
	t := f.translate
	fmt.Fprintf(b, "## %s\n\n", t(title))
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", t(row[0]), row[1])
	}
	b.WriteString("\n")
}

func orNA(t func(string) string, s string) string {
	if s == "" {
		return t("N/A")
	}
	return s
}

func yesNo(t func(string) string, v bool) string {
	if v {
		return t("Yes")
	}
	return t("No")
}

func formatPositions(t func(string) string, positions []int) string {
	if len(positions) == 0 {
		return t("None")
	}
	shown := positions
	if len(shown) > maxListedKeyframes {
		shown = shown[:maxListedKeyframes]
	}
	parts := make([]string, len(shown))
	for i, p := range shown {
		parts[i] = fmt.Sprint(p)
	}
	out := strings.Join(parts, ", ")
	if rest := len(positions) - len(shown); rest > 0 {
		out += fmt.Sprintf(" (+%d)", rest)
	}
	return out
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
