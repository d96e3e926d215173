package model

type LoginRequest struct {
	Name     string `json:"name" validate:"required,username"`
	Password string `json:"password" validate:"required,password"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=3,max=30,username"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Password *string `json:"password" validate:"omitempty,password"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type SizeInput struct {
	Size          string `json:"size" validate:"required,productsize"`
	StockQuantity int    `json:"stock_quantity" validate:"min=0"`
}

type CreateProductRequest struct {
	Name               string      `json:"product_name" validate:"required,min=3,max=40"`
	Description        string      `json:"product_description" validate:"required,min=10,max=500"`
	OriginalPrice      float64     `json:"original_price" validate:"required,gte=1"`
	DiscountPercentage *float64    `json:"discount_percentage" validate:"omitempty,gte=0,lte=100"`
	Sizes              []SizeInput `json:"sizes" validate:"required,dive"`
	Badge              string      `json:"badge" validate:"max=40"`
}

type UpdateProductRequest struct {
	Name               *string     `json:"product_name" validate:"omitempty,min=3,max=40"`
	Description        *string     `json:"product_description" validate:"omitempty,min=10,max=500"`
	OriginalPrice      *float64    `json:"original_price" validate:"omitempty,gte=1"`
	DiscountPercentage *float64    `json:"discount_percentage" validate:"omitempty,gte=0,lte=100"`
	Sizes              []SizeInput `json:"sizes" validate:"omitempty,dive"`
	Badge              *string     `json:"badge" validate:"omitempty,max=40"`
	RemoveImages       []string    `json:"remove_images"`
}

// UploadedImage is a stored product image, addressed by its public path.
type UploadedImage struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
