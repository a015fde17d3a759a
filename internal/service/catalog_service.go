package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// CatalogFile is the YAML layout accepted by Seed.
type CatalogFile struct {
	Courses []CourseSeed `yaml:"courses"`
	Badges  []BadgeSeed  `yaml:"badges"`
}

// CourseSeed describes one course with its modules.
type CourseSeed struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Modules     []ModuleSeed `yaml:"modules"`
}

// ModuleSeed describes one module with its topics. Order follows the file.
type ModuleSeed struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Topics      []TopicSeed `yaml:"topics"`
}

// TopicSeed describes one topic.
type TopicSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// BadgeSeed describes one badge.
type BadgeSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	ForRole     string `yaml:"for_role"`
	IconURL     string `yaml:"icon_url"`
}

// SeedReport counts upserted rows.
type SeedReport struct {
	Courses int `json:"courses"`
	Modules int `json:"modules"`
	Topics  int `json:"topics"`
	Badges  int `json:"badges"`
}

// CatalogService exposes the course hierarchy doubts are filed against.
type CatalogService struct {
	catalog repository.CatalogRepository
	badges  repository.BadgeRepository
	logger  *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(deps Dependencies) *CatalogService {
	deps = deps.withDefaults()
	return &CatalogService{catalog: deps.Store.Catalog, badges: deps.Store.Badges, logger: deps.Logger}
}

func (s *CatalogService) ListCourses(ctx context.Context) ([]domain.Course, error) {
	list, err := s.catalog.ListCourses(ctx)
	if err != nil {
		return nil, storeError(err, "course", "")
	}
	return list, nil
}

func (s *CatalogService) ListModules(ctx context.Context, courseID string) ([]domain.Module, error) {
	list, err := s.catalog.ListModules(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "course", courseID)
	}
	return list, nil
}

func (s *CatalogService) ListTopics(ctx context.Context, moduleID string) ([]domain.Topic, error) {
	list, err := s.catalog.ListTopics(ctx, moduleID)
	if err != nil {
		return nil, storeError(err, "module", moduleID)
	}
	return list, nil
}

func (s *CatalogService) TopicPath(ctx context.Context, topicID string) (*domain.TopicPath, error) {
	path, err := s.catalog.TopicPath(ctx, topicID)
	if err != nil {
		return nil, storeError(err, "topic", topicID)
	}
	return path, nil
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(r io.Reader) (*CatalogFile, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, apperrors.NewValidationError("invalid catalog file", map[string]any{"error": err.Error()})
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *CatalogFile) validate() error {
	for ci, c := range f.Courses {
		if strings.TrimSpace(c.Name) == "" {
			return apperrors.NewValidationError("course name is required", map[string]any{"field": fmt.Sprintf("courses[%d].name", ci)})
		}
		for mi, m := range c.Modules {
			if strings.TrimSpace(m.Name) == "" {
				return apperrors.NewValidationError("module name is required", map[string]any{"field": fmt.Sprintf("courses[%d].modules[%d].name", ci, mi)})
			}
			for ti, t := range m.Topics {
				if strings.TrimSpace(t.Name) == "" {
					return apperrors.NewValidationError("topic name is required", map[string]any{"field": fmt.Sprintf("courses[%d].modules[%d].topics[%d].name", ci, mi, ti)})
				}
			}
		}
	}
	for bi, b := range f.Badges {
		role := domain.Role(b.ForRole)
		if strings.TrimSpace(b.Name) == "" || !role.Valid() {
			return apperrors.NewValidationError("badge needs a name and a valid role", map[string]any{"field": fmt.Sprintf("badges[%d]", bi)})
		}
	}
	return nil
}

// Seed upserts the catalog. Rows are matched by name so reseeding is safe.
func (s *CatalogService) Seed(ctx context.Context, file *CatalogFile) (SeedReport, error) {
	var report SeedReport
	for _, cs := range file.Courses {
		course := domain.Course{Name: strings.TrimSpace(cs.Name), Description: cs.Description}
		if err := s.catalog.UpsertCourse(ctx, &course); err != nil {
			return report, fmt.Errorf("upsert course %q: %w", course.Name, err)
		}
		report.Courses++
		for mi, ms := range cs.Modules {
			module := domain.Module{CourseID: course.ID, Name: strings.TrimSpace(ms.Name), Description: ms.Description, OrderIndex: mi}
			if err := s.catalog.UpsertModule(ctx, &module); err != nil {
				return report, fmt.Errorf("upsert module %q: %w", module.Name, err)
			}
			report.Modules++
			for ti, ts := range ms.Topics {
				topic := domain.Topic{ModuleID: module.ID, Name: strings.TrimSpace(ts.Name), Description: ts.Description, OrderIndex: ti}
				if err := s.catalog.UpsertTopic(ctx, &topic); err != nil {
					return report, fmt.Errorf("upsert topic %q: %w", topic.Name, err)
				}
				report.Topics++
			}
		}
	}
	for _, bs := range file.Badges {
		badge := domain.Badge{
			Name:        strings.TrimSpace(bs.Name),
			Description: bs.Description,
			Type:        domain.BadgeType(bs.Type),
			ForRole:     domain.Role(bs.ForRole),
		}
		if bs.IconURL != "" {
			icon := bs.IconURL
			badge.IconURL = &icon
		}
		if err := s.badges.UpsertBadge(ctx, &badge); err != nil {
			return report, fmt.Errorf("upsert badge %q: %w", badge.Name, err)
		}
		report.Badges++
	}
	s.logger.Info("catalog seeded",
		zap.Int("courses", report.Courses),
		zap.Int("modules", report.Modules),
		zap.Int("topics", report.Topics),
		zap.Int("badges", report.Badges))
	return report, nil
}
