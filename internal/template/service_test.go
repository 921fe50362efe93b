package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
)

// Import rejection paths run entirely before any storage access, so a nil
// gateway is fine here.
func importOnlyService() *Service {
	return NewService(nil, logger.NewTestLogger())
}

func TestImportRejectsInvalidJSON(t *testing.T) {
	_, err := importOnlyService().Import(context.Background(), []byte("{not json"))

	var tmplErr *models.TemplateValidationError
	require.ErrorAs(t, err, &tmplErr)
	assert.Contains(t, tmplErr.Reason, "JSON")
}

func TestImportRejectsMissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing id":     `{"name":"Invoice","fields":[{"name":"a","label":"A","type":"string"}]}`,
		"missing name":   `{"id":"t1","fields":[{"name":"a","label":"A","type":"string"}]}`,
		"missing fields": `{"id":"t1","name":"Invoice"}`,
		"empty fields":   `{"id":"t1","name":"Invoice","fields":[]}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := importOnlyService().Import(context.Background(), []byte(payload))
			var tmplErr *models.TemplateValidationError
			require.ErrorAs(t, err, &tmplErr)
		})
	}
}

func TestImportRejectsInvalidFieldType(t *testing.T) {
	payload := `{"id":"t1","name":"Invoice","fields":[{"name":"a","label":"A","type":"blob"}]}`

	_, err := importOnlyService().Import(context.Background(), []byte(payload))

	var tmplErr *models.TemplateValidationError
	require.ErrorAs(t, err, &tmplErr)
	assert.Contains(t, tmplErr.Reason, "validation")
}
