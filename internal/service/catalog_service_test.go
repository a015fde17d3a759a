package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

const catalogYAML = `
courses:
  - name: Go Fundamentals
    description: the language
    modules:
      - name: Concurrency
        topics:
          - name: Channels
          - name: Mutexes
badges:
  - name: Fast Resolver
    description: resolved within an hour
    type: fast_resolution
    for_role: support
`

func TestSeedCatalogIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	file, err := ParseCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	report, err := h.catalog.Seed(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Courses: 1, Modules: 1, Topics: 2, Badges: 1}, report)

	_, err = h.catalog.Seed(ctx, file)
	require.NoError(t, err)

	courses, err := h.catalog.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)

	modules, err := h.catalog.ListModules(ctx, courses[0].ID)
	require.NoError(t, err)
	require.Len(t, modules, 1)

	topics, err := h.catalog.ListTopics(ctx, modules[0].ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Channels", topics[0].Name)

	path, err := h.catalog.TopicPath(ctx, topics[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Fundamentals", path.Course.Name)
	assert.Equal(t, "Concurrency", path.Module.Name)

	badges, err := h.badges.ListBadges(ctx, domain.RoleSupport)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"unknown field": "courses:\n  - name: A\n    colour: red\n",
		"missing name":  "courses:\n  - description: nameless\n",
		"bad role":      "badges:\n  - name: X\n    for_role: tutor\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(body))
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "got %v", err)
		})
	}
}

func TestDoubtWithTopicReturnsPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	file, err := ParseCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	_, err = h.catalog.Seed(ctx, file)
	require.NoError(t, err)

	courses, _ := h.catalog.ListCourses(ctx)
	modules, _ := h.catalog.ListModules(ctx, courses[0].ID)
	topics, _ := h.catalog.ListTopics(ctx, modules[0].ID)

	d, err := h.doubts.CreateDoubt(ctx, student, DoubtCreateInput{Title: "Deadlock", Description: "all goroutines asleep", TopicID: &topics[0].ID})
	require.NoError(t, err)

	detail, err := h.doubts.GetDoubt(ctx, student, d.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Topic)
	assert.Equal(t, "Channels", detail.Topic.Topic.Name)
}
