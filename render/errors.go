package render

import "github.com/cockroachdb/errors"

var (
	ErrNoSuitableQueueFamily   = errors.New("no suitable queue family")
	ErrSwapchainCreationFailed = errors.New("swapchain creation failed")
	ErrFrameWaitTimeout        = errors.New("timed out waiting for frame slot")
	ErrAcquireTimeout          = errors.New("timed out acquiring swapchain image")
	ErrImageAcquireFailed      = errors.New("swapchain image acquire failed")
	ErrCommandRecordingFailed  = errors.New("command recording failed")
	ErrSubmitFailed            = errors.New("queue submission failed")
	ErrPresentFailed           = errors.New("present failed")
	ErrTransferFailed          = errors.New("buffer transfer failed")

	// ErrWindowClosed is returned when the window is closed while a rebuild is
	// waiting for it to be restored. The scheduler treats it as a normal stop.
	ErrWindowClosed = errors.New("window closed")
)

// fail wraps err with a message and marks it with the sentinel so callers
// can match it with errors.Is while %+v still prints the original cause.
func fail(err error, sentinel error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), sentinel)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), sentinel)
}

// IsFatal reports whether err should end rendering. Everything is fatal
// except a window closing while the swapchain was waiting on it.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrWindowClosed)
}
