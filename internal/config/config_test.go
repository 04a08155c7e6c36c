package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipa-helper/internal/config"
)

const sampleDoc = `
ring:
  self: h1
  helpers:
    - identity: h1
      address: "10.0.0.1:9000"
    - identity: h2
      address: "10.0.0.2:9000"
    - identity: h3
      address: "10.0.0.3:9000"
query_defaults:
  send_window: 32
  receive_window: 8
`

func TestLoadValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))

	doc, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 32, doc.Queries.SendWindow)
	require.Equal(t, 8, doc.Queries.ReceiveWindow)
	require.Len(t, doc.Ring.Helpers, 3)
}

func TestLoadRejectsMissingSelf(t *testing.T) {
	bad := `
ring:
  self: h9
  helpers:
    - identity: h1
      address: "a:1"
    - identity: h2
      address: "b:1"
    - identity: h3
      address: "c:1"
`
	path := filepath.Join(t.TempDir(), "ring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateIdentity(t *testing.T) {
	bad := `
ring:
  self: h1
  helpers:
    - identity: h1
      address: "a:1"
    - identity: h1
      address: "b:1"
    - identity: h3
      address: "c:1"
`
	path := filepath.Join(t.TempDir(), "ring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}
