package models

// NoticeLevel classifies operator-facing text.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short human-readable message for the operator display.
type Notice struct {
	Level  NoticeLevel
	Text   string
	Detail string
}

// InfoNotice builds an info-level notice.
func InfoNotice(text string) Notice {
	return Notice{Level: NoticeInfo, Text: text}
}

// WarningNotice builds a warning-level notice.
func WarningNotice(text string) Notice {
	return Notice{Level: NoticeWarning, Text: text}
}

// ErrorNotice builds an error-level notice.
func ErrorNotice(text string) Notice {
	return Notice{Level: NoticeError, Text: text}
}
