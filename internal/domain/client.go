package domain

// Client Model, the registration profile of a cliente user
type Client struct {
	ID             uint    `gorm:"primaryKey"`                                 // Primary key
	UserID         uint    `gorm:"uniqueIndex;not null"`                       // Foreign key to User
	FirstNames     string  `gorm:"column:nombres;size:255;not null"`           // Given names
	LastNames      string  `gorm:"column:apellidos;size:255;not null"`         // Family names
	Address        *string `gorm:"column:direccion;size:255"`                  // Optional postal address
	NationalID     string  `gorm:"column:cedula;size:10;uniqueIndex;not null"` // Ecuadorian cédula
	Phone          string  `gorm:"column:celular;size:10"`                     // Mobile number, 09XXXXXXXX
	RegistrationIP string  `gorm:"column:ip_registro;size:45"`                 // Source address at registration time
}
