package dbutil

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimitPair(t *testing.T) {
	query := "SELECT entry_id FROM entry_metadata WHERE title=? LIMIT ?,?"
	args := []interface{}{"kant", 20, 10}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "SELECT entry_id FROM entry_metadata WHERE title=$1 LIMIT $2 OFFSET $3", got)
	require.Equal(t, []interface{}{"kant", 10, 20}, gotArgs)
}

func TestFinalizePlainQuery(t *testing.T) {
	query := "UPDATE entry_metadata SET title=? WHERE entry_id=?"
	args := []interface{}{"Immanuel Kant", "kant"}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "UPDATE entry_metadata SET title=$1 WHERE entry_id=$2", got)
	require.Equal(t, args, gotArgs)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.False(t, IsConflict(&pq.Error{Code: "42P01"}))
	require.False(t, IsConflict(errors.New("plain error")))
}
