package stream

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"time"

	"github.com/viva-safeland/viva-safeland/internal/metrics"
)

// client manages a single MJPEG connection's write operations.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	quality int
	logger  *slog.Logger

	buf        bytes.Buffer
	framesSent int64
	bytesSent  int64
}

// sendFrame JPEG-encodes img and writes one multipart part:
//
//	--boundary\r\n
//	Content-Type: image/jpeg\r\n
//	Content-Length: N\r\n
//	\r\n
//	<jpeg bytes>\r\n
func (c *client) sendFrame(img *image.RGBA) error {
	c.buf.Reset()
	if err := jpeg.Encode(&c.buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}

	// Extend write deadline before each write to prevent timeout on
	// long-lived connections.
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprintf(c.w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, c.buf.Len())
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	m, err := c.w.Write(c.buf.Bytes())
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := c.w.Write([]byte("\r\n")); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}

	c.flusher.Flush()
	c.framesSent++
	c.bytesSent += int64(n + m + 2)
	metrics.RecordStreamFrame(n + m + 2)

	return nil
}
