package blog

import (
	"time"

	"github.com/google/uuid"
)

type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Article struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Image     *string   `json:"image"`
	AuthorID  uuid.UUID `json:"authorId"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

// UpdateRequest changes only the fields that are present. An empty Image
// removes the article's image.
type UpdateRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
	Image   *string `json:"image" validate:"omitempty,url"`
}
