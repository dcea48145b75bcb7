package blog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/validate"
)

var (
	ErrArticleNotFound = apperr.New(apperr.ErrNotFound, "article not found")
	ErrWriterOnly      = apperr.Forbidden("only doctors and admins can publish articles")
	ErrNotAuthor       = apperr.Forbidden("only the author or an admin can change this article")
)

// Announcer tells patients about a newly published article. Implementations
// either fan out inline or enqueue a background task.
type Announcer interface {
	AnnounceArticle(ctx context.Context, articleID uuid.UUID, title string) error
}

type Service struct {
	repo      ArticleRepository
	images    blobstore.ImageStore
	announcer Announcer
	logger    zerolog.Logger
}

func NewService(repo ArticleRepository, images blobstore.ImageStore, announcer Announcer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, images: images, announcer: announcer, logger: logger}
}

// Publish stores a new article, uploading img first when given, and then
// announces it to every patient. A failed announcement is logged; the
// article stays published.
func (s *Service) Publish(ctx context.Context, caller auth.Identity, req CreateRequest, img *blobstore.Image) (*Article, error) {
	if !caller.Is(auth.RoleDoctor, auth.RoleAdmin) {
		return nil, ErrWriterOnly
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}

	a := &Article{Title: req.Title, Content: req.Content, AuthorID: caller.UserID}
	if img != nil {
		url, err := s.images.Upload(ctx, img)
		if err != nil {
			return nil, err
		}
		a.Image = &url
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if a.Image != nil {
			s.discardImage(ctx, *a.Image)
		}
		return nil, err
	}
	s.logger.Info().Str("article_id", a.ID.String()).Str("author_id", caller.UserID.String()).Msg("article published")

	if err := s.announcer.AnnounceArticle(ctx, a.ID, a.Title); err != nil {
		s.logger.Error().Err(err).Str("article_id", a.ID.String()).Msg("announce article")
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Article, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns articles newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Article, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) authorize(caller auth.Identity, a *Article) error {
	if caller.Role == auth.RoleAdmin || caller.UserID == a.AuthorID {
		return nil
	}
	return ErrNotAuthor
}

func (s *Service) Update(ctx context.Context, caller auth.Identity, id uuid.UUID, req UpdateRequest) (*Article, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, a); err != nil {
		return nil, err
	}

	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		a.Content = strings.TrimSpace(*req.Content)
	}
	if a.Title == "" || a.Content == "" {
		return nil, apperr.Validation("title and content must not be empty")
	}
	if req.Image != nil {
		if *req.Image == "" {
			a.Image = nil
		} else {
			a.Image = req.Image
		}
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the article and then its image on a best effort basis.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, a); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if a.Image != nil {
		s.discardImage(ctx, *a.Image)
	}
	s.logger.Info().Str("article_id", id.String()).Str("user_id", caller.UserID.String()).Msg("article deleted")
	return nil
}

func (s *Service) discardImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn().Err(err).Str("image", url).Msg("delete article image")
	}
}
