package dashboardapp

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/middleware"
	"github.com/phillip-england/lotdesk/internal/sales"
	"github.com/phillip-england/lotdesk/internal/session"
)

var pageFiles = []string{
	"login.html",
	"error.html",
	"dashboard.html",
	"prospects.html",
	"clients.html",
	"client.html",
	"agents.html",
	"contracts.html",
	"teams.html",
	"extensions.html",
	"reservations.html",
	"reservation.html",
	"ranking.html",
}

var funcs = template.FuncMap{
	"badge":       sales.BadgeClass,
	"capitalize":  sales.Capitalize,
	"money":       sales.Money,
	"fdate":       listing.FormatDate,
	"join":        strings.Join,
	"pageURL":     pageURL,
	"percent":     func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
	"initial":     initial,
	"evidenceURL": evidenceURL,
}

// evidenceURL lets inline evidence images and plain web links through the
// URL sanitizer; anything else renders as an empty src.
func evidenceURL(raw string) template.URL {
	raw = strings.TrimSpace(raw)
	for _, prefix := range []string{"data:image/", "https://", "http://"} {
		if strings.HasPrefix(raw, prefix) {
			return template.URL(raw)
		}
	}
	return ""
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		files := []string{"templates/layout.html", "templates/" + name}
		if name == "login.html" {
			files = files[1:]
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return nil, fmt.Errorf("dashboard: parse %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

type navItem struct {
	Module session.Module
	Title  string
	Href   string
	Active bool
}

// pager carries pagination state plus the query string every page link keeps.
type pager struct {
	Current    int
	TotalPages int
	TotalItems int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
	Window     []listing.WindowItem
	Base       string
}

func newPager[T any](r *http.Request, p listing.Page[T], maxPages int) pager {
	q := r.URL.Query()
	q.Del("page")
	q.Del("error")
	q.Del("message")
	base := r.URL.Path + "?"
	if enc := q.Encode(); enc != "" {
		base += enc + "&"
	}
	return pager{
		Current:    p.Current,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
		HasPrev:    p.HasPrev,
		HasNext:    p.HasNext,
		PrevPage:   p.PrevPage,
		NextPage:   p.NextPage,
		Window:     listing.Window(p.Current, p.TotalPages, maxPages),
		Base:       base,
	}
}

func pageURL(base string, page int) template.URL {
	return template.URL(base + "page=" + strconv.Itoa(page))
}

func initial(s string) string {
	for _, r := range strings.TrimSpace(s) {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// pageData is the envelope every layout page renders.
type pageData struct {
	Title     string
	Module    session.Module
	User      session.User
	Nav       []navItem
	CSRF      template.HTML
	Path      string
	Return    string
	Query     url.Values
	Message   string
	Error     string
	Filters   []string
	Pager     pager
	Exports   []exportLink
	Data      any
}

type exportLink struct {
	Label string
	Href  string
}

func (s *Server) page(r *http.Request, module session.Module, title string) pageData {
	data := pageData{
		Title:   title,
		Module:  module,
		CSRF:    csrf.TemplateField(r),
		Path:    r.URL.Path,
		Return:  withFlash(r.URL.RequestURI(), "message", ""),
		Query:   r.URL.Query(),
		Message: r.URL.Query().Get("message"),
		Error:   r.URL.Query().Get("error"),
	}
	if sess, ok := sessionFrom(r.Context()); ok {
		data.User = sess.User
		for _, m := range session.Modules(sess.User.Role()) {
			data.Nav = append(data.Nav, navItem{
				Module: m,
				Title:  m.Title(),
				Href:   "/" + string(m),
				Active: m == module,
			})
		}
	}
	if module != "" && module != session.ModuleDashboard {
		query := filterQuery(r.URL.Query()).Encode()
		for _, f := range []struct{ label, ext string }{{"CSV", "csv"}, {"Excel", "xlsx"}, {"PDF", "pdf"}} {
			href := "/" + string(module) + "/export." + f.ext
			if query != "" {
				href += "?" + query
			}
			data.Exports = append(data.Exports, exportLink{Label: f.label, Href: href})
		}
	}
	return data
}

// filterQuery drops the keys that never affect which rows are listed.
func filterQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		switch k {
		case "page", "perPage", "error", "message":
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	s.renderCode(w, r, http.StatusOK, name, data)
}

func (s *Server) renderCode(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := s.pages[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if err := renderHTMLTemplate(w, status, tmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		s.logger.Error("template render failed",
			zap.String("template", name),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
}

func renderHTMLTemplate(w http.ResponseWriter, status int, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := s.page(r, "", "Error")
	data.Error = message
	data.Data = status
	s.renderCode(w, r, status, "error.html", data)
}

// withFlash appends message or error to target, replacing any earlier flash.
func withFlash(target, key, text string) string {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/dashboard"}
	}
	q := u.Query()
	q.Del("error")
	q.Del("message")
	if text != "" {
		q.Set(key, text)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func redirectMessage(w http.ResponseWriter, r *http.Request, target, message string) {
	http.Redirect(w, r, withFlash(target, "message", message), http.StatusSeeOther)
}

func redirectError(w http.ResponseWriter, r *http.Request, target, message string) {
	http.Redirect(w, r, withFlash(target, "error", message), http.StatusSeeOther)
}

// returnPath is the "return" form field when it is a local path, otherwise
// fallback.
func returnPath(r *http.Request, fallback string) string {
	target := strings.TrimSpace(r.FormValue("return"))
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	return target
}

// fail maps err onto the response. An expired backend session ends the
// dashboard session too; everything else is flashed on back.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, back, fallback string) {
	if errors.Is(err, backend.ErrSessionExpired) {
		s.endSession(w, r)
		redirectError(w, r, "/login", "Su sesión expiró. Inicie sesión nuevamente.")
		return
	}
	if !errors.Is(err, sales.ErrValidation) && !errors.Is(err, sales.ErrForbidden) && !errors.Is(err, sales.ErrNotFound) {
		s.logger.Warn("request failed",
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	redirectError(w, r, back, sales.Message(err, fallback))
}

// failPage is fail for GET pages, which cannot redirect onto themselves.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, backend.ErrSessionExpired):
		s.fail(w, r, err, "/login", fallback)
	case errors.Is(err, sales.ErrForbidden):
		redirectError(w, r, "/dashboard", sales.Message(err, fallback))
	case errors.Is(err, sales.ErrNotFound):
		s.renderStatus(w, r, http.StatusNotFound, sales.Message(err, fallback))
	default:
		s.logger.Warn("page load failed",
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		s.renderStatus(w, r, http.StatusBadGateway, fallback)
	}
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// paginate applies page and perPage from the query string.
func paginate[T any](s *Server, r *http.Request, items []T) (listing.Page[T], pager) {
	perPage := s.cfg.Dashboard.PerPage
	if perPage <= 0 {
		perPage = listing.DefaultPerPage
	}
	perPage = min(parsePositiveInt(r.URL.Query().Get("perPage"), perPage), 100)
	p := listing.Paginate(items, parsePositiveInt(r.URL.Query().Get("page"), 1), perPage)
	return p, newPager(r, p, s.cfg.Dashboard.MaxPages)
}

func dateRange(r *http.Request) listing.DateRange {
	q := r.URL.Query()
	return listing.DateRange{From: strings.TrimSpace(q.Get("desde")), To: strings.TrimSpace(q.Get("hasta"))}
}

func queryValue(r *http.Request, key string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return listing.DefaultFilter
	}
	return v
}
