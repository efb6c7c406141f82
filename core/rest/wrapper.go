package rest

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sirupsen/logrus"
	"github.com/tomaswangen/safrs/core/logger"
)

// requestContext carries the per-request state through every handler call:
// the storage session, the parsed query directives and the request logger.
// It is constructed once per request by the wrapper; there is no ambient
// global state.
type requestContext struct {
	api        *API
	session    Session
	directives Directives
	rlog       *logrus.Entry
	r          *http.Request
}

// response is the successful result of a handler. The wrapper turns it into
// an HTTP response only after the session committed.
type response struct {
	status   int
	location string
	body     interface{}
}

type handlerFunc func(rc *requestContext) (*response, error)

// wrap is the cross-cutting commit/rollback bracket around every handler
// invocation. The handler runs to completion, then the session commits; any
// error triggers a rollback before it is translated into the uniform error
// envelope. This is the only place a request's errors are caught.
func (a *API) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, rlog := logger.ContextWithLogger(r.Context())
		r = r.WithContext(ctx)
		rlog.Debugln("called route for", r.URL, r.Method)

		session, err := a.store.Session(ctx)
		if err != nil {
			a.writeError(w, rlog, err)
			return
		}

		rc := &requestContext{
			api:        a,
			session:    session,
			directives: parseDirectives(r.URL.Query(), a.unlimited),
			rlog:       rlog,
			r:          r,
		}

		resp, err := fn(rc)
		if err == nil {
			err = session.Commit()
		}
		if err != nil {
			if rberr := session.Rollback(); rberr != nil {
				rlog.WithError(rberr).Errorln("rollback failed")
			}
			a.writeError(w, rlog, err)
			return
		}
		a.writeResponse(w, resp)
	}
}

func (a *API) writeResponse(w http.ResponseWriter, resp *response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if resp.location != "" {
		w.Header().Set("Location", resp.location)
	}
	status := resp.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	jsonData, _ := json.MarshalWithOption(resp.body, json.DisableHTMLEscape())
	w.Write(jsonData)
}

// statusCoder lets an error kind declare its own HTTP status.
type statusCoder interface {
	StatusCode() int
}

// writeError emits the uniform error envelope. Stack traces are never
// returned to the client; unclassified error messages are redacted unless
// the log verbosity is at debug level or above.
func (a *API) writeError(w http.ResponseWriter, rlog *logrus.Entry, err error) {
	status := http.StatusInternalServerError
	var detail string

	var apiErr *Error
	var constraint *ConstraintError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
		detail = apiErr.Detail
		rlog.WithError(err).Debugln("request failed")
	} else if errors.As(err, &constraint) {
		detail = constraint.Error()
		rlog.WithError(err).Warningln("constraint violation")
	} else {
		var sc statusCoder
		if errors.As(err, &sc) {
			status = sc.StatusCode()
		}
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			detail = err.Error()
		} else {
			detail = "Unknown Error"
		}
		rlog.WithError(err).Errorln("unclassified error")
	}

	envelope := struct {
		Errors []ErrorObject `json:"errors"`
	}{Errors: []ErrorObject{{Detail: detail}}}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	jsonData, _ := json.MarshalWithOption(envelope, json.DisableHTMLEscape())
	w.Write(jsonData)
}
