/*
This package contains lowish-level APIs for making database queries to our Postgres database. It streamlines the process of mapping query results to Go types, while allowing you to write arbitrary SQL queries.

The primary functions are Query and QueryIterator. Helpers that read exactly one row (QueryOne, QueryOneScalar) return NotFound when the result set is empty.

Query syntax

Arguments can be provided using placeholders like $1, $2, etc. All arguments will be safely escaped and mapped from their Go type to the correct Postgres type. (This is a direct proxy to pgx.)

	postIDs, err := db.QueryScalar[int](ctx, conn,
		`
		SELECT id
		FROM post
		WHERE
			thread_id = ANY($1)
			AND NOT deleted
		`,
		[]int{20, 35},
	)

(If you want to use a slice in your query, use Postgres arrays with ANY instead of IN.)

To query multiple columns at once, use a struct type with `db:"column_name"` tags and the special $columns placeholder:

	type Thread struct {
		ID         int  `db:"id"`
		ForumID    int  `db:"forum_id"`
		ReplyCount int  `db:"reply_count"`
		FirstID    *int `db:"first_id"`
	}
	threads, err := db.Query[Thread](ctx, conn, `SELECT $columns FROM thread WHERE ...`)
	// Resulting query:
	// SELECT id, forum_id, reply_count, first_id FROM thread WHERE ...

When joining, include a table prefix in the placeholder like $columns{prefix}. Nested structs tagged with `db:"alias"` map to columns of that table alias:

	type postAndThread struct {
		Post   models.Post   `db:"post"`
		Thread models.Thread `db:"thread"`
	}
	rows, err := db.Query[postAndThread](ctx, conn, `
		SELECT $columns
		FROM
			post
			JOIN thread ON thread.id = post.thread_id
	`)
	// Resulting query:
	// SELECT post.id, post.thread_id, ..., thread.id, thread.forum_id, ... FROM ...

Queries may start with a name comment, `---- Fetch thread posts`, which the perf tracer uses to label the query's block.
*/
package db
