package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSanitizeAttributesDropsEmptyStrings(t *testing.T) {
	out := SanitizeAttributes(
		attribute.String("keep", "value"),
		attribute.String("drop", "  "),
		attribute.Int("number", 3),
	)
	require.Len(t, out, 2)
	assert.Equal(t, attribute.Key("keep"), out[0].Key)
	assert.Equal(t, attribute.Key("number"), out[1].Key)
}

func TestStartEndSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span")
	require.NotNil(t, ctx)
	EndSpan(span, errors.New("recorded"))
	EndSpan(nil, nil)
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "genrun-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
