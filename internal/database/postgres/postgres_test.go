package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	schema := `-- header comment
CREATE TABLE a (id BIGINT);

-- second table
CREATE TABLE b (
    id BIGINT -- trailing note stays
);
`
	statements := splitStatements(schema)

	assert.Equal(t, []string{
		"CREATE TABLE a (id BIGINT)",
		"CREATE TABLE b (\n    id BIGINT -- trailing note stays\n)",
	}, statements)
}

func TestSplitStatements_Empty(t *testing.T) {
	assert.Empty(t, splitStatements("-- nothing here\n\n"))
}
