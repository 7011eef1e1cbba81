package model

import "time"

// Item is a sensitive equipment item, looked up by serial number.
type Item struct {
	SerialNumber  string    `json:"serial_number"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	SecurityLevel string    `json:"security_level"`
	LedgerTracked bool      `json:"ledger_tracked"`
	ImageMime     string    `json:"image_mime,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Item categories.
const (
	CategoryWeapon        = "weapon"
	CategoryCommunication = "communication"
	CategoryOptics        = "optics"
	CategoryCrypto        = "crypto"
	CategoryOther         = "other"
)

// Security levels, lowest first.
const (
	SecurityRoutine    = "routine"
	SecurityControlled = "controlled"
	SecurityClassified = "classified"
	SecuritySecret     = "secret"
	SecurityTopSecret  = "top-secret"
)

var securityRank = map[string]int{
	SecurityRoutine:    1,
	SecurityControlled: 2,
	SecurityClassified: 3,
	SecuritySecret:     4,
	SecurityTopSecret:  5,
}

// ValidCategory reports whether c is a known item category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryWeapon, CategoryCommunication, CategoryOptics, CategoryCrypto, CategoryOther:
		return true
	}
	return false
}

// SecurityAtLeast checks if level meets or exceeds minimum. Unknown levels fail closed.
func SecurityAtLeast(level, minimum string) bool {
	l, ok := securityRank[level]
	if !ok {
		return false
	}
	m, ok := securityRank[minimum]
	if !ok {
		return false
	}
	return l >= m
}

// ValidSecurityLevel reports whether level is a known security level.
func ValidSecurityLevel(level string) bool {
	_, ok := securityRank[level]
	return ok
}
