package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/listeval/internal/app"
	"github.com/okian/listeval/pkg/logger"
)

// Form field names. Positions refer to the shuffled order the rater saw.
const (
	fieldSession = "session"
	fieldRater   = "rater"
	prefixChoice = "choice-"
	prefixScore  = "score-"
)

// ABXDependencies is what the ABX form handler needs.
type ABXDependencies interface {
	StatsProvider
	OpenABX(ctx context.Context) (*service.Form, error)
	SubmitABX(ctx context.Context, sub service.ABXSubmission) (service.Result, error)
}

// MOSDependencies is what the MOS form handler needs.
type MOSDependencies interface {
	StatsProvider
	OpenMOS(ctx context.Context, page int) (*service.Form, error)
	SubmitMOS(ctx context.Context, sub service.MOSSubmission) (service.Result, error)
}

// ABXHandler serves GET/POST /abx.
type ABXHandler struct {
	deps   ABXDependencies
	logger logger.Logger
}

// NewABXHandler creates a new ABX form handler.
func NewABXHandler(deps ABXDependencies, log logger.Logger) *ABXHandler {
	return &ABXHandler{deps: deps, logger: log}
}

// Handle renders a fresh form on GET and stores the answers on POST.
func (h *ABXHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		form, err := h.deps.OpenABX(r.Context())
		if err != nil {
			fail(w, r, h.logger, h.deps, "open abx", err)
			return
		}
		h.show(w, r, http.StatusOK, form, nil)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			fail(w, r, h.logger, h.deps, "submit abx", WrapKind("parse form", ErrBadRequest, err))
			return
		}
		sub, err := parseABX(r)
		if err != nil {
			fail(w, r, h.logger, h.deps, "submit abx", err)
			return
		}
		res, err := h.deps.SubmitABX(r.Context(), sub)
		h.result(w, r, res, err)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *ABXHandler) show(w http.ResponseWriter, r *http.Request, status int, form *service.Form, msgs []string) {
	if err := render(w, status, "abx.html", page{
		Title:   "ABX listening test",
		Error:   msgs,
		Surveys: surveyNames(h.deps),
		Data:    form,
	}); err != nil {
		h.logger.Error(r.Context(), "render abx", logger.Error(err))
	}
}

func (h *ABXHandler) result(w http.ResponseWriter, r *http.Request, res service.Result, err error) {
	if res.Status == service.StatusInvalid && res.Form != nil {
		h.show(w, r, statusUnprocessableEntity, res.Form, messages(err))
		return
	}
	if err != nil {
		fail(w, r, h.logger, h.deps, "submit abx", err)
		return
	}
	done(w, r, h.logger, h.deps, res)
}

// MOSHandler serves GET/POST /mos.
type MOSHandler struct {
	deps   MOSDependencies
	logger logger.Logger
}

// NewMOSHandler creates a new MOS form handler.
func NewMOSHandler(deps MOSDependencies, log logger.Logger) *MOSHandler {
	return &MOSHandler{deps: deps, logger: log}
}

// Handle renders page ?page=N on GET and stores the answers on POST.
func (h *MOSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pg := 0
		if v := r.URL.Query().Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(w, r, h.logger, h.deps, "open mos", WrapKind("page", ErrBadRequest, err))
				return
			}
			pg = n
		}
		form, err := h.deps.OpenMOS(r.Context(), pg)
		if err != nil {
			fail(w, r, h.logger, h.deps, "open mos", err)
			return
		}
		h.show(w, r, http.StatusOK, form, nil)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			fail(w, r, h.logger, h.deps, "submit mos", WrapKind("parse form", ErrBadRequest, err))
			return
		}
		sub, err := parseMOS(r)
		if err != nil {
			fail(w, r, h.logger, h.deps, "submit mos", err)
			return
		}
		res, err := h.deps.SubmitMOS(r.Context(), sub)
		h.result(w, r, res, err)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *MOSHandler) show(w http.ResponseWriter, r *http.Request, status int, form *service.Form, msgs []string) {
	if err := render(w, status, "mos.html", page{
		Title:   "MOS listening test",
		Error:   msgs,
		Surveys: surveyNames(h.deps),
		Data:    form,
	}); err != nil {
		h.logger.Error(r.Context(), "render mos", logger.Error(err))
	}
}

func (h *MOSHandler) result(w http.ResponseWriter, r *http.Request, res service.Result, err error) {
	if res.Status == service.StatusInvalid && res.Form != nil {
		h.show(w, r, statusUnprocessableEntity, res.Form, messages(err))
		return
	}
	if err != nil {
		fail(w, r, h.logger, h.deps, "submit mos", err)
		return
	}
	done(w, r, h.logger, h.deps, res)
}

// parseABX reads choice-<item>=<position> fields.
func parseABX(r *http.Request) (service.ABXSubmission, error) {
	sub := service.ABXSubmission{
		SessionID: r.PostForm.Get(fieldSession),
		Rater:     r.PostForm.Get(fieldRater),
		Choices:   map[int]int{},
	}
	if sub.SessionID == "" {
		return sub, NewKind("missing session", ErrBadRequest)
	}
	for name, vals := range r.PostForm {
		rest, ok := strings.CutPrefix(name, prefixChoice)
		if !ok || len(vals) == 0 || vals[0] == "" {
			continue
		}
		item, err := strconv.Atoi(rest)
		if err != nil {
			return sub, WrapKind(name, ErrBadRequest, err)
		}
		pos, err := strconv.Atoi(vals[0])
		if err != nil {
			return sub, WrapKind(name, ErrBadRequest, err)
		}
		sub.Choices[item] = pos
	}
	return sub, nil
}

// parseMOS reads score-<item>-<position>-<metric>=<score> fields. Blank
// selections are left out and reported as missing by the service.
func parseMOS(r *http.Request) (service.MOSSubmission, error) {
	sub := service.MOSSubmission{
		SessionID: r.PostForm.Get(fieldSession),
		Rater:     r.PostForm.Get(fieldRater),
		Scores:    map[service.ScoreRef]int{},
	}
	if sub.SessionID == "" {
		return sub, NewKind("missing session", ErrBadRequest)
	}
	for name, vals := range r.PostForm {
		rest, ok := strings.CutPrefix(name, prefixScore)
		if !ok || len(vals) == 0 || vals[0] == "" {
			continue
		}
		parts := strings.Split(rest, "-")
		if len(parts) != 3 {
			return sub, NewKind(name, ErrBadRequest)
		}
		var idx [3]int
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return sub, WrapKind(name, ErrBadRequest, err)
			}
			idx[i] = n
		}
		score, err := strconv.Atoi(vals[0])
		if err != nil {
			return sub, WrapKind(name, ErrBadRequest, err)
		}
		sub.Scores[service.ScoreRef{Item: idx[0], Position: idx[1], Metric: idx[2]}] = score
	}
	return sub, nil
}

func done(w http.ResponseWriter, r *http.Request, log logger.Logger, sp StatsProvider, res service.Result) {
	p := page{Title: "Thank you", Surveys: surveyNames(sp), Data: res}
	if res.Status == service.StatusDuplicate {
		p.Title = "Already submitted"
		p.Notice = "Answers for this name were already recorded; nothing was changed."
	}
	if err := render(w, http.StatusOK, "result.html", p); err != nil {
		log.Error(r.Context(), "render result", logger.Error(err))
	}
}

// fail maps service errors to status codes and renders an error page.
func fail(w http.ResponseWriter, r *http.Request, log logger.Logger, sp StatsProvider, op string, err error) {
	status := statusOf(err)
	if status >= statusInternalError {
		log.Error(r.Context(), op, logger.Error(err))
	} else {
		log.Debug(r.Context(), op, logger.Int("status", status), logger.Error(err))
	}
	msg := err.Error()
	if errors.Is(err, service.ErrSessionNotFound) {
		msg = ErrGone.Error()
	}
	if rerr := render(w, status, "result.html", page{
		Title:   http.StatusText(status),
		Error:   []string{msg},
		Surveys: surveyNames(sp),
	}); rerr != nil {
		log.Error(r.Context(), "render error page", logger.Error(rerr))
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return statusBadRequest
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, ErrGone):
		return statusGone
	case errors.Is(err, service.ErrSurveyDisabled),
		errors.Is(err, service.ErrNoItems),
		errors.Is(err, service.ErrPageOutOfRange),
		errors.Is(err, ErrNotFound):
		return statusNotFound
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return statusInternalError
	}
}

// messages flattens joined validation errors into one line each.
func messages(err error) []string {
	if err == nil {
		return []string{"Please complete the form."}
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}

func surveyNames(sp StatsProvider) []string {
	st := sp.GetStats()
	names := make([]string, 0, len(st.Surveys))
	for _, s := range st.Surveys {
		names = append(names, s.Name)
	}
	return names
}
