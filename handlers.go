package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
)

// isAdmin checks the X-Admin-Token header or ?token= against ADMIN_TOKEN.
func isAdmin(r *http.Request, adminToken string) bool {
	if adminToken == "" {
		return false
	}
	if t := r.Header.Get("X-Admin-Token"); t != "" && t == adminToken {
		return true
	}
	if t := r.URL.Query().Get("token"); t != "" && t == adminToken {
		return true
	}
	return false
}

// healthHandler reports liveness and the number of chat sessions.
func healthHandler(store *sessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "sessions": store.count()})
	}
}

// catalogHandler serves GET and POST /api/catalog.
func catalogHandler(catalog catalogStore, images *imageHost, adminToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			out, err := catalog.List(r.Context())
			if err != nil {
				log.Println("catalog list error:", err)
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
			if out == nil {
				out = []Product{}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			if !isAdmin(r, adminToken) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			createCatalogItem(w, r, catalog, images)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// createCatalogItem accepts a multipart form with the item fields and an
// optional image in "file".
func createCatalogItem(w http.ResponseWriter, r *http.Request, catalog catalogStore, images *imageHost) {
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		http.Error(w, "parse multipart: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := Product{
		SKU:         strings.TrimSpace(r.FormValue("sku")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		Currency:    strings.TrimSpace(r.FormValue("currency")),
		Company:     strings.TrimSpace(r.FormValue("company")),
		Status:      strings.TrimSpace(r.FormValue("status")),
		Type:        strings.TrimSpace(r.FormValue("type")),
		Categories:  splitList(r.FormValue("categories")),
		ImageURL:    strings.TrimSpace(r.FormValue("image_url")),
		Images:      splitList(r.FormValue("images")),
		Videos:      splitList(r.FormValue("videos")),
	}
	if p.Title == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}
	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid price", http.StatusBadRequest)
			return
		}
		p.Price = price
	}
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}

	file, _, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		if images == nil {
			// dev mode keeps the given image_url or a placeholder
			if p.ImageURL == "" {
				p.ImageURL = devImage(p.Title)
			}
		} else {
			url, publicID, err := images.Upload(r.Context(), file)
			if err != nil {
				log.Println("upload error:", err)
				http.Error(w, "upload failed", http.StatusInternalServerError)
				return
			}
			p.ImageURL, p.ImagePublicID = url, publicID
		}
	}
	if p.ImageURL != "" && len(p.Images) == 0 {
		p.Images = []string{p.ImageURL}
	}

	id, err := catalog.Create(r.Context(), p)
	if err != nil {
		log.Println("catalog create error:", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	log.Printf("catalog create: id=%d title=%q type=%q", id, p.Title, p.Type)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "image_url": p.ImageURL})
}

// catalogItemHandler serves GET and DELETE /api/catalog/{id}.
func catalogItemHandler(catalog catalogStore, images *imageHost, adminToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/catalog/"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			p, err := catalog.Get(r.Context(), id)
			if errors.Is(err, errProductNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if err != nil {
				log.Println("catalog get error:", err)
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(p)
		case http.MethodDelete:
			if !isAdmin(r, adminToken) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			p, err := catalog.Delete(r.Context(), id)
			if errors.Is(err, errProductNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if err != nil {
				log.Println("catalog delete error:", err)
				http.Error(w, "db error", http.StatusInternalServerError)
				return
			}
			if images != nil && p.ImagePublicID != "" {
				if err := images.Destroy(r.Context(), p.ImagePublicID); err != nil {
					log.Println("cloudinary destroy error:", err)
				}
			}
			log.Printf("catalog delete: id=%d", id)
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
