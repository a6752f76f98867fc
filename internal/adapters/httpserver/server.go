package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/spreadsheet"
	"github.com/phenrril/tiendatextil/internal/usecase"
)

type Options struct {
	// AdminToken protects /admin routes; empty leaves them open.
	AdminToken  string
	MaxUploadMB int
	// UploadsDir is served under /uploads/ when set.
	UploadsDir string
}

type Server struct {
	mux        *http.ServeMux
	products   *usecase.ProductUC
	imports    *usecase.ImportUC
	adminToken string
	maxUpload  int64
}

// New builds the HTTP handler. products may be nil when the catalog lives in
// a hosted backend.
func New(products *usecase.ProductUC, imports *usecase.ImportUC, opts Options) http.Handler {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 5
	}
	s := &Server{
		mux:        http.NewServeMux(),
		products:   products,
		imports:    imports,
		adminToken: opts.AdminToken,
		maxUpload:  int64(opts.MaxUploadMB) << 20,
	}
	s.routes(opts.UploadsDir)
	return Chain(s.mux,
		RequestID,
		Logging,
		Recovery,
		RateLimit(30, "POST /admin/import", "POST /admin/import/preview"),
	)
}

func (s *Server) routes(uploadsDir string) {
	if uploadsDir != "" {
		s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/categories", s.apiCategories)
	s.mux.HandleFunc("GET /api/products", s.apiProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.apiProduct)
	s.mux.HandleFunc("GET /api/products/{id}/variants", s.apiProductVariants)
	s.mux.HandleFunc("GET /api/variants", s.apiVariantBySKU)

	s.mux.HandleFunc("POST /admin/categories", s.admin(s.handleCreateCategory))

	s.mux.HandleFunc("GET /admin/import/suppliers", s.admin(s.handleSuppliers))
	s.mux.HandleFunc("POST /admin/import/preview", s.admin(s.handleImportPreview))
	s.mux.HandleFunc("POST /admin/import", s.admin(s.handleImportStart))
	s.mux.HandleFunc("GET /admin/import/jobs/{id}", s.admin(s.handleImportJob))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) apiCategories(w http.ResponseWriter, r *http.Request) {
	var (
		cats []domain.Category
		err  error
	)
	if s.imports != nil {
		cats, err = s.imports.Categories(r.Context())
	} else if s.products != nil {
		cats, err = s.products.ListCategories(r.Context())
	}
	if err != nil {
		log.Error().Err(err).Msg("catégories")
		writeError(w, http.StatusBadGateway, "catégories indisponibles")
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeError(w, http.StatusNotImplemented, "catalogue non local")
		return
	}
	q := r.URL.Query()
	f := domain.ProductFilter{Query: q.Get("q")}
	if c := q.Get("category"); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "catégorie invalide")
			return
		}
		f.CategoryID = id
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	list, total, err := s.products.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("liste produits")
		writeError(w, http.StatusInternalServerError, "liste")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": total})
}

func (s *Server) apiProduct(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeError(w, http.StatusNotImplemented, "catalogue non local")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	p, err := s.products.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) apiProductVariants(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeError(w, http.StatusNotImplemented, "catalogue non local")
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	list, err := s.products.ListVariants(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (s *Server) apiVariantBySKU(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeError(w, http.StatusNotImplemented, "catalogue non local")
		return
	}
	sku := strings.TrimSpace(r.URL.Query().Get("sku"))
	if sku == "" {
		writeError(w, http.StatusBadRequest, "sku requis")
		return
	}
	v, err := s.products.SearchBySKU(r.Context(), sku)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if s.products == nil {
		writeError(w, http.StatusNotImplemented, "catalogue non local")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "json invalide")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "nom requis")
		return
	}
	c, err := s.products.CreateCategory(r.Context(), body.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type supplierView struct {
	Name               string  `json:"name"`
	Label              string  `json:"label"`
	ManufacturerColumn string  `json:"manufacturer_column"`
	PriceMultiplier    float64 `json:"price_multiplier"`
	CMYKColors         bool    `json:"cmyk_colors"`
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	profiles := s.imports.Suppliers()
	out := make([]supplierView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, supplierView{
			Name:               p.Name,
			Label:              p.Label,
			ManufacturerColumn: p.ManufacturerColumn,
			PriceMultiplier:    p.PriceMultiplier,
			CMYKColors:         p.CMYKColors,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	data, _, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	preview, err := s.imports.Preview(data, r.FormValue("supplier"))
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	req := usecase.ImportRequest{
		Supplier:        r.FormValue("supplier"),
		FileName:        name,
		Data:            data,
		Manufacturers:   formList(r, "manufacturers"),
		DefaultCategory: r.FormValue("default_category"),
	}
	if raw := strings.TrimSpace(r.FormValue("category_mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.CategoryMapping); err != nil {
			writeError(w, http.StatusBadRequest, "category_mapping invalide")
			return
		}
	}
	job, err := s.imports.Start(r.Context(), req)
	if err != nil {
		writeImportError(w, err)
		return
	}
	w.Header().Set("Location", "/admin/import/jobs/"+job.ID.String())
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "job": job})
}

func (s *Server) handleImportJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	job, err := s.imports.Job(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// readUpload reads the "file" part of a multipart form, capped at the
// configured upload size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	limit := s.maxUpload + (1 << 20)
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
		return nil, "", false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "formulaire multipart attendu")
		return nil, "", false
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "fichier manquant")
		return nil, "", false
	}
	defer f.Close()
	if fh.Size > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "fichier trop volumineux")
		return nil, "", false
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		writeError(w, http.StatusBadRequest, "format attendu: .xlsx ou .xls")
		return nil, "", false
	}
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "fichier vide")
		return nil, "", false
	}
	return data, fh.Filename, true
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.imports == nil {
			writeError(w, http.StatusServiceUnavailable, "import indisponible")
			return
		}
		if s.adminToken != "" {
			auth := r.Header.Get("Authorization")
			tok := ""
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				tok = strings.TrimSpace(auth[7:])
			}
			if subtle.ConstantTimeCompare([]byte(tok), []byte(s.adminToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		h(w, r)
	}
}

func formList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.MultipartForm.Value[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "identifiant invalide")
		return uuid.Nil, false
	}
	return id, true
}

func writeImportError(w http.ResponseWriter, err error) {
	var empty *spreadsheet.EmptyFileError
	switch {
	case errors.Is(err, usecase.ErrUnknownSupplier), errors.Is(err, domain.ErrMissingCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrNoProducts), errors.As(err, &empty):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Warn().Err(err).Msg("fichier d'import rejeté")
		writeError(w, http.StatusBadRequest, "fichier illisible: "+err.Error())
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "introuvable")
		return
	}
	log.Error().Err(err).Msg("requête")
	writeError(w, http.StatusInternalServerError, "erreur interne")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
