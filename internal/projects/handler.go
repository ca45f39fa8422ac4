package projects

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace-gateway/middleware/security"
	"marketplace-gateway/middleware/security/application"
	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
	"marketplace-gateway/middleware/security/sanitize"

	"gorm.io/datatypes"
)

// Route é o caminho do endpoint.
const Route = "/secure-project-crud"

// Policy é a configuração de segurança do endpoint: 100 requisições por 15
// minutos por cliente, autenticação obrigatória e Validate no corpo.
func Policy() security.Config {
	return security.Config{
		Name: "secure-project-crud",
		RateLimit: &domain.RateLimitPolicy{
			Window:      15 * time.Minute,
			MaxRequests: 100,
		},
		RequireAuth:   true,
		ValidateInput: Validate,
		LogLevel:      "info",
	}
}

// Handler atende o endpoint. Deve rodar atrás de Endpoint.Middleware: espera
// o usuário e os dados sanitizados no contexto.
type Handler struct {
	Repo  Repository
	Audit application.AuditLogger
	Log   *logging.Logger
}

func NewHandler(repo Repository, audit application.AuditLogger, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{Repo: repo, Audit: audit, Log: log}
}

// Mount devolve o handler protegido pelo gateway com a política cfg
// (normalmente Policy(), com ajustes da config).
func (h *Handler) Mount(gw *security.Gateway, cfg security.Config) (http.Handler, error) {
	ep, err := gw.Endpoint(cfg)
	if err != nil {
		return nil, err
	}
	return ep.Middleware()(h), nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := security.UserFrom(r.Context())
	if !ok {
		security.ErrorResponse(security.MsgAuthRequired, http.StatusUnauthorized, nil).Write(w)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%v", rec)
			h.Log.Error("Unexpected error", map[string]any{"error": err.Error()})

			entry := application.FunctionError("Unexpected error in secure project function", err, user.ID)
			entry.ClientIP = security.ClientIPFrom(r.Context())
			entry.UserAgent = r.UserAgent()
			h.Audit.Record(r.Context(), entry)

			security.ErrorResponse("Internal server error", http.StatusInternalServerError, nil).Write(w)
		}
	}()

	data, _ := security.DataFrom(r.Context())

	var resp *security.Response
	switch r.Method {
	case http.MethodGet:
		resp = h.list(r.Context(), user)
	case http.MethodPost:
		resp = h.create(r, user, data)
	case http.MethodPut:
		resp = h.update(r.Context(), user, r.URL.Query().Get("id"), data)
	default:
		resp = security.ErrorResponse("Method not allowed", http.StatusMethodNotAllowed, nil)
	}
	resp.Write(w)
}

func (h *Handler) list(ctx context.Context, user *domain.Principal) *security.Response {
	projects, err := h.Repo.ListByCreator(ctx, user.ID)
	if err != nil {
		h.Log.Error("Database error", map[string]any{"error": err.Error(), "userId": user.ID})
		return security.ErrorResponse("Failed to fetch projects", http.StatusInternalServerError, nil)
	}
	if projects == nil {
		projects = []Project{}
	}
	return security.SuccessResponse(map[string]any{
		"projects": projects,
		"total":    len(projects),
	}, http.StatusOK)
}

func (h *Handler) create(r *http.Request, user *domain.Principal, data sanitize.Value) *security.Response {
	title, _ := data.Get("title")
	p := &Project{
		CreatorID:   user.ID,
		IsPublished: false, // sempre começa como rascunho
	}
	p.Title, _ = title.Str()
	p.Description = optionalString(data, "description")
	p.Category = optionalString(data, "category")
	p.Tags = tagsOf(data)

	price, hasPrice := numberField(data, "price")
	p.Price = price
	isFree, _ := data.Get("is_free")
	free, _ := isFree.Bool()
	p.IsFree = (hasPrice && price == 0) || free

	if err := h.Repo.Create(r.Context(), p); err != nil {
		h.Log.Error("Project creation error", map[string]any{"error": err.Error(), "userId": user.ID})
		return security.ErrorResponse("Failed to create project", http.StatusInternalServerError, nil)
	}

	h.Audit.Record(r.Context(), application.AuditEntry{
		EventType: "project_created",
		Severity:  domain.SeverityInfo,
		Message:   "User created new project",
		Metadata: map[string]any{
			"project_id":    p.ID,
			"project_title": p.Title,
		},
		UserID:    user.ID,
		ClientIP:  security.ClientIPFrom(r.Context()),
		UserAgent: r.UserAgent(),
	})

	return security.SuccessResponse(map[string]any{
		"message": "Project created successfully",
		"project": p,
	}, http.StatusCreated)
}

func (h *Handler) update(ctx context.Context, user *domain.Principal, id string, data sanitize.Value) *security.Response {
	if id == "" {
		return security.ErrorResponse("Project ID is required", http.StatusBadRequest, nil)
	}

	existing, err := h.Repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return security.ErrorResponse("Project not found", http.StatusNotFound, nil)
	}
	if err != nil {
		h.Log.Error("Database error", map[string]any{"error": err.Error(), "projectId": id})
		return security.ErrorResponse("Project not found", http.StatusNotFound, nil)
	}
	if existing.CreatorID != user.ID {
		return security.ErrorResponse("Unauthorized to modify this project", http.StatusForbidden, nil)
	}

	changes := Changes{}
	if t, ok := data.Get("title"); ok {
		if s, _ := t.Str(); s != "" {
			changes["title"] = s
		}
	}
	if _, ok := data.Get("description"); ok {
		changes["description"] = optionalString(data, "description")
	}
	if _, ok := data.Get("category"); ok {
		changes["category"] = optionalString(data, "category")
	}
	if _, ok := data.Get("tags"); ok {
		changes["tags"] = tagsOf(data)
	}
	if price, ok := numberField(data, "price"); ok {
		changes["price"] = price
		changes["is_free"] = price == 0
	}

	updated, err := h.Repo.Update(ctx, id, changes)
	if err != nil {
		h.Log.Error("Project update error", map[string]any{"error": err.Error(), "projectId": id})
		return security.ErrorResponse("Failed to update project", http.StatusInternalServerError, nil)
	}

	return security.SuccessResponse(map[string]any{
		"message": "Project updated successfully",
		"project": updated,
	}, http.StatusOK)
}

// optionalString devolve nil quando o campo falta, é null ou não é string.
func optionalString(data sanitize.Value, key string) *string {
	v, ok := data.Get(key)
	if !ok {
		return nil
	}
	s, ok := v.Str()
	if !ok || s == "" {
		return nil
	}
	return &s
}

func numberField(data sanitize.Value, key string) (float64, bool) {
	v, ok := data.Get(key)
	if !ok {
		return 0, false
	}
	return v.Float64()
}

// tagsOf guarda no máximo MaxTags itens; qualquer outra coisa vira NULL.
func tagsOf(data sanitize.Value) datatypes.JSON {
	v, _ := data.Get("tags")
	items, ok := v.Array()
	if !ok {
		return nil
	}
	if len(items) > MaxTags {
		items = items[:MaxTags]
	}
	b, err := sanitize.NewArray(items...).MarshalJSON()
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
