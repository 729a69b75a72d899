package gateway

import (
	"testing"

	"arkstore/internal/config"
	"arkstore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinIOFactory_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GatewayConfig
		want string
	}{
		{"missing endpoint", config.GatewayConfig{}, "endpoint is required"},
		{"missing credentials", config.GatewayConfig{Endpoint: "gw.local:9000"}, "credentials are required"},
		{"missing bucket", config.GatewayConfig{Endpoint: "gw.local:9000", AccessKey: "a", SecretKey: "s"}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinIOFactory(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewMinIOFactory_BuildsConnections(t *testing.T) {
	factory, err := NewMinIOFactory(config.GatewayConfig{
		Endpoint:  "gw.local:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "permaweb",
	})
	require.NoError(t, err)

	c, err := factory()
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestMetadataOf_RepeatedNamesJoined(t *testing.T) {
	md := metadataOf([]model.Tag{
		{Name: "Content-Type", Value: "image/png"},
		{Name: "Color", Value: "red"},
		{Name: "Color", Value: "blue"},
	})

	assert.Equal(t, "image/png", md["Content-Type"])
	assert.Equal(t, "red,blue", md["Color"])
}

func TestContentTypeOf(t *testing.T) {
	assert.Equal(t, "image/png", contentTypeOf([]model.Tag{{Name: "Content-Type", Value: "image/png"}}))
	assert.Equal(t, "application/octet-stream", contentTypeOf(nil))
}
