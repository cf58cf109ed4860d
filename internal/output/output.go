// Package output provides styled terminal output helpers (success, error,
// warning, note formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dirtyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Title prints a bold heading
func Title(format string, args ...interface{}) {
	fmt.Println(titleStyle.Render(fmt.Sprintf(format, args...)))
}

// Subtle prints dimmed secondary text
func Subtle(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeDatabaseError = "database_error"
	ErrCodeSyncError     = "sync_error"
	ErrCodeNotLoggedIn   = "not_logged_in"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatSyncState renders a record's sync state marker for list views.
func FormatSyncState(dirty bool) string {
	if dirty {
		return dirtyStyle.Render("●")
	}
	return syncedStyle.Render("✓")
}

// FormatTag renders a note tag.
func FormatTag(tag string) string {
	return tagStyle.Render("#" + tag)
}

// FormatTimestamp renders a millisecond timestamp as local time, or "never"
// for zero.
func FormatTimestamp(ms int64) string {
	if ms <= 0 {
		return subtleStyle.Render("never")
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// FormatRelative renders a millisecond timestamp as a short relative age.
func FormatRelative(ms int64) string {
	if ms <= 0 {
		return "never"
	}
	d := time.Since(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
