package domain

// Role is the authorization role carried by a user and by their credential.
type Role string

const (
	RoleClient Role = "cliente" // Account holder, operates on their own account
	RoleTeller Role = "cajero"  // Teller, may deposit into any account
)

// User Model
type User struct {
	ID         uint        `gorm:"primaryKey"`                                     // Primary key
	Username   string      `gorm:"size:64;uniqueIndex;not null"`                   // Unique, immutable username
	Password   []byte      `gorm:"type:varbinary(100);not null" json:"-"`          // bcrypt hash, never serialized
	Role       Role        `gorm:"size:16;not null"`                               // cliente or cajero
	FullName   string      `gorm:"size:255"`                                       // Display name
	Email      string      `gorm:"size:255;uniqueIndex"`                           // Unique email
	Account    *Account    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"` // One-to-one account
	CreditCard *CreditCard `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"` // One-to-one credit card
	Client     *Client     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`  // Registration profile, removed with the user
}

// Identity is the subject asserted by a verified credential.
type Identity struct {
	UserID   uint   // Subject id
	Role     Role   // Role at issue time
	Username string // Optional, empty for credentials issued without it
}
