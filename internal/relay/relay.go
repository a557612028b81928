// Package relay streams an upstream response back to the client using
// HTTP/1.1 chunked transfer encoding, writing bytes through as soon as
// they arrive rather than buffering the full body. It hijacks the
// client connection so it has full control over the wire bytes, per
// spec.md §4.7's explicit hex-length framing.
package relay

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// excludedResponseHeaders are stripped from the upstream response
// before relaying, per spec.md §4.6.6: the proxy re-frames the body
// itself, so these would be stale or contradictory if passed through.
var excludedResponseHeaders = map[string]bool{
	"content-length":    true,
	"transfer-encoding": true,
	"content-encoding":  true,
}

const chunkBufferSize = 32 * 1024

// Stream writes status, the filtered upstream headers plus
// Transfer-Encoding: chunked, and then the body as a sequence of
// chunked-encoding frames, reading at most chunkBufferSize bytes at a
// time from body. If the client disconnects mid-stream, writes start
// failing and Stream stops reading upstream: a failed flush after a
// frame returns nil, while a write that fails before the flush returns
// its error, which the caller only reports and never retries.
func Stream(w http.ResponseWriter, status int, upstreamHeaders http.Header, body io.Reader) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return streamFallback(w, status, upstreamHeaders, body)
	}

	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		return fmt.Errorf("relay: hijack failed: %w", err)
	}
	defer conn.Close()

	if err := writeHead(bufrw.Writer, status, upstreamHeaders); err != nil {
		return err
	}
	if err := bufrw.Flush(); err != nil {
		return err
	}

	return copyChunked(bufrw.Writer, body)
}

func writeHead(w *bufio.Writer, status int, upstreamHeaders http.Header) error {
	statusText := http.StatusText(status)
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, statusText); err != nil {
		return err
	}

	names := make([]string, 0, len(upstreamHeaders))
	for name := range upstreamHeaders {
		if excludedResponseHeaders[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range upstreamHeaders[name] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, v); err != nil {
				return err
			}
		}
	}
	if _, err := w.WriteString("Transfer-Encoding: chunked\r\n\r\n"); err != nil {
		return err
	}
	return nil
}

// copyChunked reads body in bounded chunks and writes each as one
// chunked-transfer-encoding frame: uppercase hex length, CRLF, the
// chunk bytes verbatim, CRLF. It never re-encodes or decompresses the
// bytes it reads. Body boundaries from the upstream are not preserved
// 1:1 as frame boundaries (a read may return less than chunkBufferSize
// even mid-stream), but the concatenation of decoded chunk bodies is
// always byte-identical to the upstream stream, which is the
// property spec.md §8 requires.
func copyChunked(w *bufio.Writer, body io.Reader) error {
	buf := make([]byte, chunkBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := fmt.Fprintf(w, "%X\r\n", n); err != nil {
				return err
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if _, err := w.WriteString("\r\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				// Client disconnected mid-stream: stop reading
				// upstream, release resources, not an error the
				// Dispatcher needs to retry or report.
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				_, err := w.WriteString("0\r\n\r\n")
				if err == nil {
					err = w.Flush()
				}
				return err
			}
			return readErr
		}
	}
}

// streamFallback is used only when the ResponseWriter doesn't support
// hijacking (e.g. in some test harnesses); it relies on the stdlib's
// own chunked encoder, which frames each flushed write as one chunk
// when Content-Length is unset, but writes chunk lengths in lowercase
// hex rather than the uppercase hex copyChunked uses.
func streamFallback(w http.ResponseWriter, status int, upstreamHeaders http.Header, body io.Reader) error {
	dst := w.Header()
	for name, values := range upstreamHeaders {
		if excludedResponseHeaders[strings.ToLower(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	w.WriteHeader(status)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chunkBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}
