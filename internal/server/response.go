package server

import (
	"encoding/json"
	"fmt"
	"io"
)

// Response is the tagged reply union: a status line mirroring the
// command vocabulary (PARK_CONFIRMED:…, EXTEND_FAILED;…) and an
// optional structured payload for table data. Either part may be
// empty; an all-empty Response means no reply at all.
type Response struct {
	Text string
	Rows any
}

var none = Response{}

func text(format string, args ...any) Response {
	return Response{Text: fmt.Sprintf(format, args...)}
}

func withRows(status string, rows any) Response {
	return Response{Text: status, Rows: rows}
}

// Write serializes the response as the status line followed, when table
// data is present, by one DATA: line carrying the rows as JSON.
func (r Response) Write(w io.Writer) error {
	if r.Text != "" {
		if _, err := fmt.Fprintf(w, "%s\n", r.Text); err != nil {
			return err
		}
	}
	if r.Rows != nil {
		b, err := json.Marshal(r.Rows)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "DATA:%s\n", b); err != nil {
			return err
		}
	}
	return nil
}
