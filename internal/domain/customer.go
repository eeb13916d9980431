package domain

import (
	"fmt"
	"time"
)

const (
	RoleCustomer   = "customer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

const (
	AddressTypeShipping = "SHIPPING"
	AddressTypeBilling  = "BILLING"
)

type Customer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Profile struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	Addresses   []Address `json:"addresses"`
}

type Address struct {
	ID         string `json:"id"`
	ProfileID  string `json:"profile_id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Type       string `json:"type"`
}

// ShippingAddress resolves the customer's first SHIPPING address into a
// single display string. Missing profile or address yields a placeholder;
// orders are still placed.
func (c *Customer) ShippingAddress() string {
	if c.Profile == nil {
		return "N/A - No profile address found"
	}
	for _, addr := range c.Profile.Addresses {
		if addr.Type == AddressTypeShipping {
			return fmt.Sprintf("%s, %s, %s, %s - %s",
				addr.Street, addr.City, addr.State, addr.PostalCode, addr.Country)
		}
	}
	return "N/A - No default SHIPPING address found"
}
