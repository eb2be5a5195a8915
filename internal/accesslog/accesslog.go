package accesslog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
)

// DateFormat is the timestamp layout of a log line, always in UTC
const DateFormat = "Mon 02 Jan 2006 15:04:05 MST"

// Entry is one completed transaction
type Entry struct {
	Time          time.Time
	ClientAddress string
	RequestLine   string
	StatusSummary string
}

// fieldEscaper keeps client-supplied text inside its own field and line
var fieldEscaper = strings.NewReplacer("\t", `\t`, "\r", `\r`, "\n", `\n`)

// String renders the tab-separated log line without its newline
func (e Entry) String() string {
	return e.Time.UTC().Format(DateFormat) + "\t" +
		field(e.ClientAddress) + "\t" +
		field(e.RequestLine) + "\t" +
		field(e.StatusSummary)
}

// field makes s valid UTF-8 free of separators
func field(s string) string {
	return fieldEscaper.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}

// StatusSummary describes the outcome of a transaction. Successful transfers
// carry the bytes written against the content length so truncated writes show
// up in the log.
func StatusSummary(code, written, contentLength int) string {
	if code == 200 {
		return fmt.Sprintf("200 OK %d/%d", written, contentLength)
	}
	return strconv.Itoa(code)
}

// Logger appends entries to a log file shared by all workers. Each append
// opens, locks, writes and closes the file, so lines never interleave and
// the file can be rotated underneath a running server.
type Logger struct {
	path string
	echo io.Writer

	// mu serialises appends within this process; flock extends that to
	// workers running in separate processes.
	mu sync.Mutex
}

// New creates a Logger for path. Every logged request line is also echoed to
// echo when it is non-nil.
func New(path string, echo io.Writer) *Logger {
	return &Logger{
		path: path,
		echo: echo,
	}
}

func (l *Logger) Path() string {
	return l.path
}

// Log appends one entry. Failures are returned as LoggingError and are never
// retried.
func (l *Logger) Log(e Entry) error {
	if l.echo != nil {
		fmt.Fprintln(l.echo, e.RequestLine)
	}

	return l.append([]byte(e.String() + "\n"))
}

func (l *Logger) append(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return srverrors.New(srverrors.LoggingError, "open log file", err)
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return srverrors.New(srverrors.LoggingError, "lock log file", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	if _, err := f.Write(line); err != nil {
		return srverrors.New(srverrors.LoggingError, "write log file", err)
	}
	return nil
}
