package gatehouse

import (
	"encoding/json"
	"net/http"
)

// JSONHandler are regular HTTP handlers that return a value to be encoded as
// JSON. Errors are written with WriteError, so their code decides the status.
//
// A nil response with a nil error results in a 204.
type JSONHandler func(req *http.Request) (any, error)

// ServeHTTP implements http.Handler.
func (fn JSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := execJSONHandler(fn, w, r); err != nil {
		WriteError(w, r, err)
	}
}

func execJSONHandler(fn JSONHandler, w http.ResponseWriter, r *http.Request) error {
	resp, err := fn(r)
	if err != nil {
		return err
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	return nil
}
