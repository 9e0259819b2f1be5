package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/gorilla/schema"
	"go.uber.org/zap"
)

// Riga city centre, used when a registrant doesn't pick a location.
const (
	defaultLat = 56.9496
	defaultLng = 24.1052
)

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// deps are the collaborators the HTTP layer is built from.
type deps struct {
	store     *Store
	images    ImageUploader
	assistant *Assistant
	forms     Submitter
	log       *zap.Logger
	now       func() time.Time
}

func newRouter(d deps) http.Handler {
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	st := d.store
	mux := http.NewServeMux()

	// discovery
	mux.HandleFunc("GET /api/farmers", listFarmers(st))
	mux.HandleFunc("GET /api/farmers/{id}", getFarmer(st))
	mux.HandleFunc("GET /api/map", mapPins(st))
	mux.HandleFunc("POST /api/farmers", registerFarmer(st, d.images, d.now, d.log))

	// engagement
	mux.HandleFunc("POST /api/farmers/{id}/rate", rateFarmer(st))
	mux.HandleFunc("POST /api/farmers/{id}/follow", followFarmer(st))
	mux.HandleFunc("GET /api/favorites", listFavorites(st))
	mux.HandleFunc("GET /api/ratings", listRatings(st))

	// farmer session
	mux.HandleFunc("POST /api/login", loginHandler(st))
	mux.HandleFunc("POST /api/logout", logoutHandler(st))
	mux.HandleFunc("GET /api/me", requireFarmer(st, meHandler))
	mux.HandleFunc("DELETE /api/me", requireFarmer(st, deleteMe(st)))
	mux.HandleFunc("PUT /api/me/profile", requireFarmer(st, updateProfile(st)))
	mux.HandleFunc("POST /api/me/products", requireFarmer(st, addProduct(st)))
	mux.HandleFunc("PUT /api/me/products/{pid}", requireFarmer(st, updateStock(st)))
	mux.HandleFunc("DELETE /api/me/products/{pid}", requireFarmer(st, deleteProduct(st)))

	// admin
	mux.HandleFunc("POST /api/admin/login", adminLogin(st))
	mux.HandleFunc("POST /api/admin/logout", adminLogout(st))
	mux.HandleFunc("GET /api/admin/farmers", requireAdmin(st, adminFarmers(st)))
	mux.HandleFunc("GET /api/admin/stats", requireAdmin(st, adminStats(st)))
	mux.HandleFunc("POST /api/admin/farmers/{id}/approve", requireAdmin(st, adminApprove(st)))
	mux.HandleFunc("POST /api/admin/farmers/{id}/verify", requireAdmin(st, adminVerify(st)))
	mux.HandleFunc("DELETE /api/admin/farmers/{id}", requireAdmin(st, adminDeleteFarmer(st)))

	// notifications
	mux.HandleFunc("GET /api/notifications", listNotifications(st))
	mux.HandleFunc("POST /api/notifications/read-all", markAllRead(st))
	mux.HandleFunc("POST /api/notifications/{id}/read", markRead(st))
	mux.HandleFunc("DELETE /api/notifications", clearNotifications(st))

	// collaborators
	mux.HandleFunc("POST /api/assistant", assistantHandler(d.assistant))
	mux.HandleFunc("POST /api/translate", translateHandler(d.assistant))
	mux.HandleFunc("POST /api/contact", contactHandler(st, d.forms, d.log))

	return logRequests(d.log, mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// publicFarmer hides login credentials from consumer-facing responses.
func publicFarmer(f Farmer) Farmer {
	f.Credentials = nil
	return f
}

func publicFarmers(in []Farmer) []Farmer {
	for i := range in {
		in[i] = publicFarmer(in[i])
	}
	return in
}

func queryFrom(r *http.Request) Query {
	return Query{Term: r.URL.Query().Get("q"), Category: r.URL.Query().Get("category")}
}

func listFarmers(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, publicFarmers(st.Discover(queryFrom(r))))
	}
}

type farmerDetail struct {
	Farmer
	Followed   bool `json:"followed"`
	UserRating int  `json:"userRating"`
	IsOwner    bool `json:"isOwner"`
}

func getFarmer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f, ok := st.Farmer(id)
		if !ok {
			http.Error(w, "farmer not found", http.StatusNotFound)
			return
		}
		owner, loggedIn := st.SessionFarmer()
		writeJSON(w, http.StatusOK, farmerDetail{
			Farmer:     publicFarmer(f),
			Followed:   st.IsFollowed(id),
			UserRating: st.UserRating(id),
			IsOwner:    loggedIn && owner.ID == id,
		})
	}
}

func mapPins(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.MapPins(queryFrom(r)))
	}
}

// registrationForm is the multipart body of POST /api/farmers.
type registrationForm struct {
	Name        string   `schema:"name"`
	Description string   `schema:"description"`
	Address     string   `schema:"address"`
	Phone       string   `schema:"phone"`
	Email       string   `schema:"email"`
	Username    string   `schema:"username"`
	Password    string   `schema:"password" default:"123456"`
	Lat         string   `schema:"lat"`
	Lng         string   `schema:"lng"`
	Categories  []string `schema:"categories"`
	Unit        string   `schema:"unit" default:"kg"`
}

// farmer turns the form into a directory entry, synthesizing one placeholder
// product per chosen category.
func (f registrationForm) farmer(newID func() string, now time.Time) (Farmer, error) {
	if strings.TrimSpace(f.Name) == "" {
		return Farmer{}, errors.New("name required")
	}
	unit, err := ParseUnit(f.Unit)
	if err != nil {
		return Farmer{}, err
	}
	products := make([]Product, 0, len(f.Categories))
	for _, raw := range f.Categories {
		cat, err := ParseCategory(raw)
		if err != nil {
			return Farmer{}, err
		}
		products = append(products, Product{
			ID:       newID(),
			Name:     "Seasonal " + string(cat),
			Category: cat,
			Unit:     unit,
			InStock:  true,
		})
	}

	coords, picked, err := f.location()
	if err != nil {
		return Farmer{}, err
	}
	address := strings.TrimSpace(f.Address)
	if picked && address == "" {
		address = fmt.Sprintf("Lat: %.4f, Lng: %.4f", coords.Lat, coords.Lng)
	}
	username := strings.TrimSpace(f.Username)
	if username == "" {
		username = fmt.Sprintf("user%d", now.UnixMilli())
	}

	return Farmer{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Address:     address,
		Coordinates: coords,
		Products:    products,
		IsOpen:      true,
		Phone:       f.Phone,
		Email:       f.Email,
		Credentials: &Credentials{Username: username, Password: f.Password},
	}, nil
}

// location returns the picked map location, or a random spot near Riga when
// both lat and lng are empty.
func (f registrationForm) location() (Coordinates, bool, error) {
	lat, lng := strings.TrimSpace(f.Lat), strings.TrimSpace(f.Lng)
	if lat == "" && lng == "" {
		return Coordinates{
			Lat: defaultLat + (rand.Float64()-0.5)*0.1,
			Lng: defaultLng + (rand.Float64()-0.5)*0.1,
		}, false, nil
	}
	if lat == "" || lng == "" {
		return Coordinates{}, false, errors.New("lat and lng must be given together")
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("invalid lat: %w", err)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("invalid lng: %w", err)
	}
	return Coordinates{Lat: la, Lng: ln}, true, nil
}

// registerFarmer accepts a multipart form; an optional "file" part becomes the
// cover image.
func registerFarmer(st *Store, images ImageUploader, now func() time.Time, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// plain urlencoded bodies are fine too, they just carry no image
		if err := r.ParseMultipartForm(20 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "parse multipart: "+err.Error(), http.StatusBadRequest)
			return
		}
		var form registrationForm
		if err := formDecoder.Decode(&form, r.PostForm); err != nil {
			http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := defaults.Set(&form); err != nil {
			http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
		farmer, err := form.farmer(st.NewID, now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		farmer.ImageURL = placeholderImage(now())
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			if images != nil {
				url, err := images.Upload(r.Context(), file)
				if err != nil {
					log.Error("cover image upload failed", zap.Error(err))
					http.Error(w, "upload failed", http.StatusInternalServerError)
					return
				}
				farmer.ImageURL = url
			}
		}

		created := st.Register(farmer)
		log.Info("farmer registered", zap.String("id", created.ID), zap.String("name", created.Name))
		writeJSON(w, http.StatusCreated, created)
	}
}

type scoreBody struct {
	Score int `json:"score"`
}

func rateFarmer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body scoreBody
		if err := decodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateScore(body.Score); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, ok := st.Farmer(id); !ok {
			http.Error(w, "farmer not found", http.StatusNotFound)
			return
		}
		st.Rate(id, body.Score)
		f, _ := st.Farmer(id)
		writeJSON(w, http.StatusOK, map[string]any{
			"rating":      f.Rating,
			"reviewCount": f.ReviewCount,
			"userRating":  body.Score,
		})
	}
}

func followFarmer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followed := st.ToggleFollow(r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]bool{"followed": followed})
	}
}

func listFavorites(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, publicFarmers(st.Favorites()))
	}
}

func listRatings(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.UserRatings())
	}
}

// loginHandler expects JSON {"username","password"}.
func loginHandler(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cred Credentials
		if err := decodeJSON(r, &cred); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !st.Login(cred.Username, cred.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		f, _ := st.SessionFarmer()
		writeJSON(w, http.StatusOK, f)
	}
}

func logoutHandler(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.Logout()
		w.WriteHeader(http.StatusNoContent)
	}
}

type farmerHandler func(w http.ResponseWriter, r *http.Request, f Farmer)

// requireFarmer resolves the session farmer or answers 401.
func requireFarmer(st *Store, next farmerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := st.SessionFarmer()
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, f)
	}
}

func meHandler(w http.ResponseWriter, r *http.Request, f Farmer) {
	writeJSON(w, http.StatusOK, f)
}

func deleteMe(st *Store) farmerHandler {
	return func(w http.ResponseWriter, r *http.Request, f Farmer) {
		st.DeleteSelf()
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateProfile(st *Store) farmerHandler {
	return func(w http.ResponseWriter, r *http.Request, f Farmer) {
		var u ProfileUpdate
		if err := decodeJSON(r, &u); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		st.UpdateProfile(f.ID, u)
		updated, _ := st.SessionFarmer()
		writeJSON(w, http.StatusOK, updated)
	}
}

// productForm is the JSON body of POST /api/me/products.
type productForm struct {
	Name     string  `json:"name"`
	Category string  `json:"category" default:"Vegetables"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit" default:"kg"`
}

func (p productForm) product(id string) (Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, errors.New("name required")
	}
	cat, err := ParseCategory(p.Category)
	if err != nil {
		return Product{}, err
	}
	unit, err := ParseUnit(p.Unit)
	if err != nil {
		return Product{}, err
	}
	if err := validatePrice(p.Price); err != nil {
		return Product{}, err
	}
	return Product{ID: id, Name: strings.TrimSpace(p.Name), Category: cat, Price: p.Price, Unit: unit, InStock: true}, nil
}

func addProduct(st *Store) farmerHandler {
	return func(w http.ResponseWriter, r *http.Request, f Farmer) {
		var form productForm
		if err := decodeJSON(r, &form); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := defaults.Set(&form); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err := form.product(st.NewID())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st.AddProduct(f.ID, p)
		writeJSON(w, http.StatusCreated, p)
	}
}

type stockBody struct {
	InStock *bool    `json:"inStock"`
	Price   *float64 `json:"price"`
}

func updateStock(st *Store) farmerHandler {
	return func(w http.ResponseWriter, r *http.Request, f Farmer) {
		pid := r.PathValue("pid")
		j := productIndex(f.Products, pid)
		if j < 0 {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		var body stockBody
		if err := decodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inStock, price := f.Products[j].InStock, f.Products[j].Price
		if body.InStock != nil {
			inStock = *body.InStock
		}
		if body.Price != nil {
			price = *body.Price
		}
		if err := validatePrice(price); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st.SetStock(f.ID, pid, inStock, price)
		updated, _ := st.SessionFarmer()
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteProduct(st *Store) farmerHandler {
	return func(w http.ResponseWriter, r *http.Request, f Farmer) {
		st.RemoveProduct(f.ID, r.PathValue("pid"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// requireAdmin answers 401 unless the admin flag is set.
func requireAdmin(st *Store, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !st.IsAdmin() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func adminLogin(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !st.LoginAdmin(body.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminLogout(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.LogoutAdmin()
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminFarmers(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Farmers())
	}
}

func adminStats(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Stats())
	}
}

func adminApprove(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.Approve(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminVerify(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.SetVerified(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminDeleteFarmer(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.Remove(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func listNotifications(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed := st.Notifications()
		unread := 0
		for _, n := range feed {
			if !n.Read {
				unread++
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": feed,
			"unread":        unread,
		})
	}
}

func markRead(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.MarkRead(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func markAllRead(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.MarkAllRead()
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearNotifications(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st.ClearNotifications()
		w.WriteHeader(http.StatusNoContent)
	}
}

func assistantHandler(a *Assistant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Message) == "" {
			http.Error(w, "message required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": a.Reply(r.Context(), body.Message)})
	}
}

func translateHandler(a *Assistant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
			Lang string `json:"lang"`
		}
		if err := decodeJSON(r, &body); err != nil || body.Lang == "" {
			http.Error(w, "text and lang required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": a.Translate(r.Context(), body.Text, body.Lang)})
	}
}

const contactFailedMessage = "We couldn't send your message right now. Please call the farmer directly."

type contactBody struct {
	FarmerID string `json:"farmerId"`
	Kind     string `json:"kind" default:"message"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
}

// contactHandler relays a contact or order form. Relay failures are reported
// to the caller only.
func contactHandler(st *Store, forms Submitter, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body contactBody
		if err := decodeJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := defaults.Set(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			http.Error(w, "message required", http.StatusBadRequest)
			return
		}
		farmer, ok := st.Farmer(body.FarmerID)
		if !ok {
			http.Error(w, "farmer not found", http.StatusNotFound)
			return
		}
		sub := Submission{
			Subject:  fmt.Sprintf("New %s for %s via Riga Harvest", body.Kind, farmer.Name),
			FromName: "Riga Harvest",
			ReplyTo:  body.Email,
			Name:     body.Name,
			Email:    body.Email,
			Phone:    body.Phone,
			Message:  fmt.Sprintf("To: %s (%s %s)\n\n%s", farmer.Name, farmer.Phone, farmer.Email, body.Message),
		}
		if forms == nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": contactFailedMessage})
			return
		}
		if err := forms.Submit(r.Context(), sub); err != nil {
			log.Warn("contact relay failed", zap.String("farmer", farmer.ID), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": contactFailedMessage})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
