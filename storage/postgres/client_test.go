package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
)

func skipWithoutDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testing in short mode")
	}
	if os.Getenv("CI_TEST_CONN_STRING") == "" {
		t.Skip("CI_TEST_CONN_STRING not set")
	}
}

func newClient(t *testing.T) *Client {
	connString := os.Getenv("CI_TEST_CONN_STRING")
	logger := log.NewDefaultLogger("postgres-test")

	client, err := NewClient(context.Background(), connString, logger)
	require.Nil(t, err)
	return client
}

func TestInvalidConnect(t *testing.T) {
	connString := "an invalid connstring"
	logger := log.NewDefaultLogger("postgres-test")

	_, err := NewClient(context.Background(), connString, logger)
	require.NotNil(t, err)
}

func TestConnect(t *testing.T) {
	skipWithoutDB(t)

	client := newClient(t)
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()))
}

func TestQuery(t *testing.T) {
	skipWithoutDB(t)

	client := newClient(t)
	defer client.Close()

	rows, err := client.Query(context.Background(), `
		SELECT * FROM ( VALUES (0),(1),(2) ) AS q;
	`)
	require.Nil(t, err)
	defer rows.Close()

	i := 0
	for rows.Next() {
		var result int
		err = rows.Scan(&result)
		require.Nil(t, err)
		require.Equal(t, i, result)

		i++
	}
	require.Equal(t, 3, i)
}

func TestInvalidQueryRow(t *testing.T) {
	skipWithoutDB(t)

	client := newClient(t)
	defer client.Close()

	var result int
	err := client.QueryRow(context.Background(), `
		an invalid query
	`).Scan(&result)
	require.NotNil(t, err)
}

func TestSendBatch(t *testing.T) {
	skipWithoutDB(t)

	client := newClient(t)
	defer client.Close()

	defer func() {
		destroy := &storage.QueryBatch{}
		destroy.Queue(`
			DROP TABLE films;
		`)
		err := client.SendBatch(context.Background(), destroy)
		require.Nil(t, err)
	}()

	create := &storage.QueryBatch{}
	create.Queue(`
		CREATE TABLE films (
			fid  INTEGER PRIMARY KEY,
			name TEXT
		);
	`)
	err := client.SendBatch(context.Background(), create)
	require.Nil(t, err)

	insert := &storage.QueryBatch{}
	queueFilms := func(b *storage.QueryBatch, f []string, idOffset int) {
		rows := make([]string, 0, len(f))
		for i, film := range f {
			rows = append(rows, fmt.Sprintf("(%d, '%s')", i+idOffset, film))
		}
		b.Queue(fmt.Sprintf(`
			INSERT INTO films (fid, name)
			VALUES %s;
		`, strings.Join(rows, ", ")))
	}

	films1 := []string{
		"Gone with the Wind",
		"Avatar",
		"Titanic",
	}
	films2 := []string{
		"Star Wars",
		"Avengers: Endgame",
	}
	queueFilms(insert, films1, 0)
	queueFilms(insert, films2, len(films1))
	err = client.SendBatch(context.Background(), insert)
	require.Nil(t, err)

	var wg sync.WaitGroup
	for i, film := range append(films1, films2...) {
		wg.Add(1)
		go func(i int, film string) {
			defer wg.Done()

			var result string
			err := client.QueryRow(context.Background(), `
				SELECT name FROM films WHERE fid = $1;
			`, i).Scan(&result)
			require.Nil(t, err)
			require.Equal(t, film, result)
		}(i, film)
	}

	wg.Wait()

	// A failing statement rolls back the whole batch.
	conflicting := &storage.QueryBatch{}
	conflicting.Queue(`INSERT INTO films (fid, name) VALUES (100, 'Heat')`)
	conflicting.Queue(`INSERT INTO films (fid, name) VALUES (0, 'duplicate')`)
	require.Error(t, client.SendBatch(context.Background(), conflicting))

	var count int
	require.NoError(t, client.QueryRow(context.Background(), `SELECT count(*) FROM films WHERE fid = 100`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestInvalidSendBatch(t *testing.T) {
	skipWithoutDB(t)

	client := newClient(t)
	defer client.Close()

	invalid := &storage.QueryBatch{}
	invalid.Queue(`
		an invalid query
	`)
	err := client.SendBatch(context.Background(), invalid)
	require.NotNil(t, err)
}
