package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

// openDB connects to MySQL/TiDB. A DSN with tls=tidb gets a TLS config
// built from caPath.
func openDB(dsn, caPath string) (*sql.DB, error) {
	if strings.Contains(dsn, "tls=tidb") {
		registerTiDBTLS(caPath)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func registerTiDBTLS(caPath string) {
	if caPath == "" {
		caPath = "/etc/ssl/certs/ca-certificates.crt"
	}
	pool := x509.NewCertPool()
	b, err := os.ReadFile(caPath)
	if err != nil {
		log.Printf("warning: could not read CA file %s: %v, falling back to InsecureSkipVerify", caPath, err)
		_ = mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
		return
	}
	if !pool.AppendCertsFromPEM(b) {
		log.Printf("warning: could not parse CA file %s, falling back to InsecureSkipVerify", caPath)
		_ = mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
		return
	}
	_ = mysql.RegisterTLSConfig("tidb", &tls.Config{RootCAs: pool})
}

// ensureTable creates the jewelry table if it doesn't exist and seeds it
// when empty.
func ensureTable(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jewelry (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        sku VARCHAR(64),
        title VARCHAR(255) NOT NULL,
        description TEXT,
        price DECIMAL(10,2) DEFAULT 0.00,
        currency VARCHAR(8) DEFAULT '$',
        company VARCHAR(255),
        status VARCHAR(64),
        type VARCHAR(64),
        categories TEXT,
        image_url TEXT,
        image_public_id VARCHAR(255) NULL,
        images TEXT,
        videos TEXT,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        INDEX idx_jewelry_type (type)
    )`); err != nil {
		return err
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM jewelry").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	c := &mysqlCatalog{db: db}
	for _, p := range seedProducts() {
		if _, err := c.Create(context.Background(), p); err != nil {
			return fmt.Errorf("seed %s: %w", p.SKU, err)
		}
	}
	log.Printf("seeded jewelry table with %d items", len(seedProducts()))
	return nil
}

// mysqlCatalog keeps the catalog in the jewelry table. List columns are
// stored as JSON arrays.
type mysqlCatalog struct {
	db     *sql.DB
	images *imageHost
}

const jewelryColumns = `id, IFNULL(sku,''), title, IFNULL(description,''), price, IFNULL(currency,''),
	IFNULL(company,''), IFNULL(status,''), IFNULL(type,''), IFNULL(categories,''), IFNULL(image_url,''),
	IFNULL(image_public_id,''), IFNULL(images,''), IFNULL(videos,''), created_at`

func (c *mysqlCatalog) Query(ctx context.Context, q CatalogQuery) ([]SearchResult, error) {
	where := []string{}
	args := []interface{}{}
	if q.Title != "" && q.Title != "Jewelry" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Type != "" {
		where = append(where, "LOWER(type) = ?")
		args = append(args, strings.ToLower(q.Type))
	}
	query := "SELECT " + jewelryColumns + " FROM jewelry"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	products, err := c.scan(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// styles live in a JSON column, so they are matched here
	var matched []Product
	for _, p := range products {
		if q.matches(p) {
			matched = append(matched, p)
		}
	}
	var out []SearchResult
	for _, p := range page(matched, q) {
		out = append(out, productResult(p, c.images))
	}
	return out, nil
}

func (c *mysqlCatalog) List(ctx context.Context) ([]Product, error) {
	return c.scan(ctx, "SELECT "+jewelryColumns+" FROM jewelry ORDER BY id DESC")
}

func (c *mysqlCatalog) Get(ctx context.Context, id int64) (Product, error) {
	out, err := c.scan(ctx, "SELECT "+jewelryColumns+" FROM jewelry WHERE id = ?", id)
	if err != nil {
		return Product{}, err
	}
	if len(out) == 0 {
		return Product{}, errProductNotFound
	}
	return out[0], nil
}

func (c *mysqlCatalog) Create(ctx context.Context, p Product) (int64, error) {
	res, err := c.db.ExecContext(ctx, `INSERT INTO jewelry
        (sku, title, description, price, currency, company, status, type, categories, image_url, image_public_id, images, videos, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SKU, p.Title, p.Description, strconv.FormatFloat(p.Price, 'f', 2, 64), p.Currency, p.Company, p.Status, p.Type,
		jsonList(p.Categories), p.ImageURL, sqlNullString(p.ImagePublicID), jsonList(p.Images), jsonList(p.Videos), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert jewelry: %w", err)
	}
	return res.LastInsertId()
}

func (c *mysqlCatalog) Delete(ctx context.Context, id int64) (Product, error) {
	p, err := c.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	res, err := c.db.ExecContext(ctx, "DELETE FROM jewelry WHERE id = ?", id)
	if err != nil {
		return Product{}, fmt.Errorf("delete jewelry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Product{}, errProductNotFound
	}
	return p, nil
}

func (c *mysqlCatalog) scan(ctx context.Context, query string, args ...interface{}) ([]Product, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jewelry: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		var priceStr, categories, images, videos string
		var created interface{}
		if err := rows.Scan(&p.ID, &p.SKU, &p.Title, &p.Description, &priceStr, &p.Currency,
			&p.Company, &p.Status, &p.Type, &categories, &p.ImageURL,
			&p.ImagePublicID, &images, &videos, &created); err != nil {
			return nil, fmt.Errorf("scan jewelry: %w", err)
		}
		// price comes as string from DECIMAL
		p.Price, _ = strconv.ParseFloat(priceStr, 64)
		p.Categories = parseList(categories)
		p.Images = parseList(images)
		p.Videos = parseList(videos)
		switch v := created.(type) {
		case string:
			p.CreatedAt = v
		case []byte:
			p.CreatedAt = string(v)
		case time.Time:
			p.CreatedAt = v.Format(time.RFC3339)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		log.Printf("bad list column %q: %v", truncate(s, 80), err)
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
