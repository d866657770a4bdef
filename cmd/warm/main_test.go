package main

import (
	"testing"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDomains_All(t *testing.T) {
	domains, err := resolveDomains(true, "ignored", []string{"food", " Store "})
	require.NoError(t, err)
	assert.Equal(t, []entities.Domain{entities.DomainFood, entities.DomainStore}, domains)
}

func TestResolveDomains_Single(t *testing.T) {
	domains, err := resolveDomains(false, "group", nil)
	require.NoError(t, err)
	assert.Equal(t, []entities.Domain{entities.DomainGroup}, domains)
}

func TestResolveDomains_Errors(t *testing.T) {
	_, err := resolveDomains(false, "", []string{"food"})
	assert.ErrorIs(t, err, errNoDomain)

	_, err = resolveDomains(false, "drinks", nil)
	assert.Error(t, err)

	_, err = resolveDomains(true, "", []string{"food", "bogus"})
	assert.ErrorContains(t, err, "WARM_DOMAINS")
}
