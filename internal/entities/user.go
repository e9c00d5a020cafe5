package entities

// Admin is the single operator allowed to use the REST surface
type Admin struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
