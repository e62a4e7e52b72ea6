package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/metrics"
	"github.com/salvacomida/miniapp/internal/observability/logger"
	"github.com/salvacomida/miniapp/internal/security/password"
	"github.com/salvacomida/miniapp/internal/telegram"
)

// Config del servidor stub.
type Config struct {
	// AdminTelegramID habilita el auto-alta del admin en login aunque
	// no exista en el store.
	AdminTelegramID string
	// AdminPasswordHash es el PHC argon2id contra el que se verifica la
	// password del admin. Vacío = cualquier password falla.
	AdminPasswordHash string
	// BotToken, si está presente, activa la validación HMAC del
	// init_data que llega en el login.
	BotToken string
}

// Server agrupa el store, el emisor de tokens y el hub websocket.
type Server struct {
	cfg    Config
	store  Store
	issuer *Issuer
	hub    *Hub
}

func NewServer(cfg Config, store Store) (*Server, error) {
	issuer, err := NewIssuer("salvacomida-dev")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, store: store, issuer: issuer, hub: NewHub()}, nil
}

// Hub expone el hub para tests y para el shutdown.
func (s *Server) Hub() *Hub { return s.hub }

// Router arma el chi.Mux con todas las rutas del stub.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/check", s.handleAuthCheck)
		r.Post("/auth/login", s.handleAuthLogin)
		r.Post("/users", s.handleCreateUser)
		r.Get("/products", s.handleListProducts)
		r.Post("/products", s.handleCreateProduct)
		r.Get("/orders", s.handleListOrders)
		r.Post("/orders", s.handleCreateOrder)
		r.Get("/ws", s.hub.ServeWS)
	})
	return r
}

type checkRequest struct {
	TelegramID string `json:"telegram_id"`
}

type checkResponse struct {
	Exists bool   `json:"exists"`
	Role   string `json:"role,omitempty"`
	User   *User  `json:"user,omitempty"`
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.TelegramID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "telegram_id requerido")
		return
	}
	u, err := s.store.UserByTelegramID(r.Context(), req.TelegramID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, checkResponse{Exists: false})
		return
	}
	if err != nil {
		logger.L().Error("auth check", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Exists: true, Role: u.Role, User: u})
}

type loginRequest struct {
	TelegramID string `json:"telegram_id"`
	Role       string `json:"role"`
	Password   string `json:"password,omitempty"`
	InitData   string `json:"init_data,omitempty"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.TelegramID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "telegram_id requerido")
		return
	}

	if s.cfg.BotToken != "" && req.InitData != "" {
		if err := telegram.Validate(req.InitData, s.cfg.BotToken); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_init_data", "firma de init_data inválida")
			return
		}
	}

	u, err := s.store.UserByTelegramID(r.Context(), req.TelegramID)
	switch {
	case errors.Is(err, ErrNotFound):
		// El admin configurado puede autenticarse aunque nunca haya
		// pasado por el alta normal: se auto-provisiona.
		if req.Role != "admin" || req.TelegramID != s.cfg.AdminTelegramID {
			writeError(w, http.StatusNotFound, "unknown_user", "usuario no registrado")
			return
		}
		u = &User{TelegramID: req.TelegramID, Role: "admin"}
		if err := s.store.CreateUser(r.Context(), u); err != nil {
			logger.L().Error("auto-alta admin", logger.Err(err))
			writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
			return
		}
	case err != nil:
		logger.L().Error("auth login", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}

	// La password solo aplica al segundo paso del admin. Un login admin
	// sin password emite tokens igual: el cliente gatea con su propio
	// estado de auth secundaria.
	if req.Role == "admin" && req.Password != "" {
		if !password.Verify(req.Password, s.cfg.AdminPasswordHash) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "password incorrecta")
			return
		}
	}

	role := req.Role
	if role == "" {
		role = u.Role
	}
	access, refresh, err := s.issuer.IssuePair(req.TelegramID, role)
	if err != nil {
		logger.L().Error("emitir tokens", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "no se pudieron emitir tokens")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: access, RefreshToken: refresh})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u User
	if !readJSON(w, r, &u) {
		return
	}
	if u.TelegramID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "telegram_id requerido")
		return
	}
	if u.Role == "" {
		u.Role = "user"
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		logger.L().Error("crear usuario", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		logger.L().Error("listar productos", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	if products == nil {
		products = []Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p Product
	if !readJSON(w, r, &p) {
		return
	}
	if p.Title == "" || p.SellerID == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "title y seller_id requeridos")
		return
	}
	if err := s.store.CreateProduct(r.Context(), &p); err != nil {
		logger.L().Error("crear producto", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	sellerID, err := strconv.ParseInt(r.URL.Query().Get("seller_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "seller_id numérico requerido")
		return
	}
	orders, err := s.store.OrdersBySeller(r.Context(), sellerID)
	if err != nil {
		logger.L().Error("listar pedidos", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

type orderEvent struct {
	Event     string `json:"event"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	UserID    string `json:"user_id,omitempty"`
	ActionURL string `json:"action_url,omitempty"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var o Order
	if !readJSON(w, r, &o) {
		return
	}
	if o.ProductID == "" || o.BuyerID == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "product_id y buyer_id requeridos")
		return
	}
	p, err := s.store.ProductByID(r.Context(), o.ProductID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown_product", "producto inexistente")
		return
	}
	if err != nil {
		logger.L().Error("buscar producto", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}
	o.SellerID = p.SellerID
	if o.Quantity <= 0 {
		o.Quantity = 1
	}
	if err := s.store.CreateOrder(r.Context(), &o); err != nil {
		logger.L().Error("crear pedido", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "store no disponible")
		return
	}

	// Empujar al vendedor: un evento de notificación (lo ingiere el
	// store local del cliente) y el evento crudo de dominio.
	room := RoomKey("seller", strconv.FormatInt(p.SellerID, 10))
	s.hub.Broadcast(room, orderEvent{
		Event:     "notification",
		Type:      "order_created",
		Title:     "Nuevo pedido",
		Message:   "Pedido de " + p.Title,
		OrderID:   o.ID,
		ProductID: p.ID,
		SellerID:  strconv.FormatInt(p.SellerID, 10),
		UserID:    strconv.FormatInt(o.BuyerID, 10),
	})
	s.hub.Broadcast(room, orderEvent{
		Event:     "orderCreated",
		Type:      "order_created",
		Title:     "Nuevo pedido",
		Message:   "Pedido de " + p.Title,
		OrderID:   o.ID,
		ProductID: p.ID,
		SellerID:  strconv.FormatInt(p.SellerID, 10),
		UserID:    strconv.FormatInt(o.BuyerID, 10),
	})
	logger.L().Info("pedido creado",
		zap.String("order_id", o.ID),
		zap.Int64("seller_id", p.SellerID),
		zap.Int("subscribers", s.hub.Subscribers(room)))

	writeJSON(w, http.StatusCreated, o)
}

// requestLogger loguea cada request con zap y alimenta las métricas HTTP.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.L().Info("http",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Duration(time.Since(start)))
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
	})
}

// cors abre el stub a cualquier origen. Las Mini Apps corren embebidas
// en el webview de Telegram y el origen varía por entorno.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
