// Package models defines the core data structures for users, products and categories.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// User represents a storefront user profile. It never carries the token.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id"`
	// Username is the login name chosen by the user.
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

// LoginResponse is the payload returned by POST /auth/login: the user fields
// flattened next to the bearer token.
type LoginResponse struct {
	User
	Token string `json:"token"`
}

// Credentials is the body of a login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserRecord is a user as stored by the catalog server.
type UserRecord struct {
	User
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte `json:"-"`
}

// ProductID identifies a product. Remote payloads and older snapshots may carry
// it as a JSON string, so decoding accepts both forms; it always encodes as a number.
type ProductID int64

// ParseProductID coerces user or wire input into a ProductID.
func ParseProductID(s string) (ProductID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ProductID(n), nil
	}
	// "5.0" is still product 5
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return ProductID(int64(f)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseProductID(s)
		if err != nil {
			return err
		}
		*id = v
		return nil
	}
	v, err := ParseProductID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// String returns the decimal form of the id.
func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Rating is a product rating. Some catalogs send a bare number, others an
// object with a "rate" field.
type Rating float64

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rating) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Rate float64 `json:"rate"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = Rating(obj.Rate)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Rating(f)
	return nil
}

// Product is a single catalog entry.
type Product struct {
	ID          ProductID `json:"id"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Rating      Rating    `json:"rating,omitempty"`
}

// ProductPage is the {"products": [...]} envelope used by the listing
// endpoints and by the persisted product snapshot.
type ProductPage struct {
	Products []Product `json:"products"`
}

// Category is a product category. Older catalogs list categories as bare
// strings; newer ones as {slug, name, url} objects.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Category) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Category{Slug: s, Name: s}
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Slug == "" {
		p.Slug = p.Name
	}
	if p.Name == "" {
		p.Name = p.Slug
	}
	*c = Category(p)
	return nil
}

// DeleteAck is the acknowledgement returned by DELETE /products/{id}.
type DeleteAck struct {
	ID        ProductID `json:"id"`
	IsDeleted bool      `json:"isDeleted"`
	DeletedOn time.Time `json:"deletedOn"`
}
