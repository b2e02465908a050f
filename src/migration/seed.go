package migration

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/hmndata"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/parsing"
	"git.handmade.network/hmn/postmerge/src/utils"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
)

// Restores a pg_dump of a real forum into the local db.
func SeedFromFile(seedFile string) {
	file, err := os.Open(seedFile)
	if err != nil {
		panic(fmt.Errorf("couldn't open seed file %s: %w", seedFile, err))
	}
	file.Close()

	fmt.Println("Executing seed...")
	cmd := exec.Command("pg_restore",
		"--single-transaction",
		"--data-only",
		"--dbname", config.Config.Postgres.DSN(),
		seedFile,
	)
	fmt.Println("Running command:", cmd)
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Print(string(output))
		panic(fmt.Errorf("failed to execute seed: %w", err))
	}

	fmt.Println("Done! You may want to migrate forward from here.")
	ListMigrations()
}

var seedEpoch = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

/*
Fills the db with a few users, forums and threads to merge posts around in.
One forum does not count messages so that merges can cross counting contexts.
*/
func SampleSeed() {
	Migrate(LatestVersion())

	ctx := context.Background()
	conn := db.NewConnWithConfig(config.PostgresConfig{
		LogLevel: tracelog.LogLevelWarn,
	})
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	fmt.Println("Creating users...")
	seedUser(ctx, tx, models.User{Username: "admin", Name: "Admin", IsStaff: true})
	users := []*models.User{
		seedUser(ctx, tx, models.User{Username: "alice", Name: "Alice"}),
		seedUser(ctx, tx, models.User{Username: "bob", Name: "Bob"}),
		seedUser(ctx, tx, models.User{Username: "charlie", Name: "Charlie"}),
		seedUser(ctx, tx, models.User{Username: "spam", Name: "Hot singletons in your local area"}),
	}

	fmt.Println("Creating forums...")
	forums := []*models.Forum{
		seedForum(ctx, tx, models.Forum{Slug: "general", Name: "General", CountMessages: true}),
		seedForum(ctx, tx, models.Forum{Slug: "offtopic", Name: "Off-topic", CountMessages: false}),
	}

	fmt.Println("Creating threads and posts...")
	var threadIDs []int
	postDate := seedEpoch
	for _, forum := range forums {
		for i := 0; i < 4; i++ {
			threadID := seedThread(ctx, tx, forum.ID, lorem.Sentence(3, 8))
			threadIDs = append(threadIDs, threadID)

			numPosts := 1 + rand.Intn(8)
			for j := 0; j < numPosts; j++ {
				postDate = postDate.Add(time.Duration(1+rand.Intn(120)) * time.Minute)

				state := models.MessageStateVisible
				if j > 0 && rand.Intn(6) == 0 {
					state = models.MessageStateModerated
				}
				author := users[rand.Intn(len(users))]
				postID := seedPost(ctx, tx, threadID, author.ID, state, postDate, lorem.Paragraph(1, 3))

				if randomBool() {
					seedLikes(ctx, tx, postID, author.ID, users, forum.CountMessages)
				}
				if rand.Intn(4) == 0 {
					seedAttachment(ctx, tx, postID)
				}
			}
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Println("Rebuilding counters...")
	rebuildSeedCounters(ctx, conn, threadIDs, forums)
}

func seedUser(ctx context.Context, conn db.ConnOrTx, input models.User) *models.User {
	user, err := db.QueryOne[models.User](ctx, conn,
		`
		INSERT INTO hmn_user (username, name, date_joined, is_staff)
		VALUES ($1, $2, $3, $4)
		RETURNING $columns
		`,
		input.Username,
		utils.OrDefault(input.Name, randomName()),
		seedEpoch,
		input.IsStaff,
	)
	if err != nil {
		panic(err)
	}
	return user
}

func seedForum(ctx context.Context, conn db.ConnOrTx, input models.Forum) *models.Forum {
	forum, err := db.QueryOne[models.Forum](ctx, conn,
		`
		INSERT INTO forum (slug, name, blurb, count_messages)
		VALUES ($1, $2, $3, $4)
		RETURNING $columns
		`,
		input.Slug,
		input.Name,
		utils.OrDefault(input.Blurb, lorem.Sentence(0, 14)),
		input.CountMessages,
	)
	if err != nil {
		panic(err)
	}
	return forum
}

func seedThread(ctx context.Context, conn db.ConnOrTx, forumID int, title string) int {
	threadID, err := db.QueryOneScalar[int](ctx, conn,
		`
		INSERT INTO thread (forum_id, title, discussion_state)
		VALUES ($1, $2, $3)
		RETURNING id
		`,
		forumID,
		title,
		models.MessageStateVisible,
	)
	if err != nil {
		panic(err)
	}
	return threadID
}

func seedPost(ctx context.Context, conn db.ConnOrTx, threadID, authorID int, state models.MessageState, postDate time.Time, text string) int {
	content := parsing.PreparePostContent(text)

	postID, err := db.QueryOneScalar[int](ctx, conn,
		`
		INSERT INTO post (author_id, thread_id, state, postdate, preview)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
		`,
		authorID,
		threadID,
		state,
		postDate,
		content.Preview,
	)
	if err != nil {
		panic(err)
	}

	_, err = conn.Exec(ctx,
		`
		WITH version AS (
			INSERT INTO post_version (post_id, text_raw, text_parsed, date)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		)
		UPDATE post
		SET current_id = (SELECT id FROM version)
		WHERE id = $1
		`,
		postID,
		content.Raw,
		content.Parsed,
		postDate,
	)
	if err != nil {
		panic(err)
	}

	return postID
}

func seedLikes(ctx context.Context, conn db.ConnOrTx, postID, authorID int, users []*models.User, counted bool) {
	var rows [][]any
	for _, user := range users {
		if user.ID == authorID || !randomBool() {
			continue
		}
		rows = append(rows, []any{postID, user.ID, authorID, seedEpoch, counted})
	}
	if len(rows) == 0 {
		return
	}

	_, err := conn.CopyFrom(ctx,
		pgx.Identifier{"post_like"},
		[]string{"post_id", "like_user_id", "content_author_id", "like_date", "is_counted"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		panic(err)
	}
	_, err = conn.Exec(ctx, `UPDATE post SET like_count = $1 WHERE id = $2`, len(rows), postID)
	if err != nil {
		panic(err)
	}
}

func seedAttachment(ctx context.Context, conn db.ConnOrTx, postID int) {
	_, err := conn.Exec(ctx,
		`
		INSERT INTO attachment (id, post_id, filename, size, mime_type)
		VALUES ($1, $2, $3, $4, 'image/png');
		`,
		uuid.New(),
		postID,
		fmt.Sprintf("%s.png", lorem.Word(4, 10)),
		1024+rand.Intn(1<<20),
	)
	if err != nil {
		panic(err)
	}
	_, err = conn.Exec(ctx, `UPDATE post SET attach_count = attach_count + 1 WHERE id = $1`, postID)
	if err != nil {
		panic(err)
	}
}

// Runs the same thread and forum rebuilds a merge does, so the seeded data
// starts out consistent.
func rebuildSeedCounters(ctx context.Context, conn *pgx.Conn, threadIDs []int, forums []*models.Forum) {
	tx, err := hmndata.NewStore(conn).Begin(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	for _, threadID := range threadIDs {
		utils.Must1(merge.RebuildThread(ctx, tx, threadID))
	}
	for _, forum := range forums {
		utils.Must(tx.RebuildForumCounters(ctx, forum.ID))
	}
	utils.Must(tx.Commit(ctx))

	_, err = conn.Exec(ctx,
		`
		UPDATE hmn_user
		SET message_count = (
			SELECT COUNT(*)
			FROM
				post
				JOIN thread ON thread.id = post.thread_id
				JOIN forum ON forum.id = thread.forum_id
			WHERE
				post.author_id = hmn_user.id
				AND post.state = $1
				AND thread.discussion_state = $1
				AND forum.count_messages
		)
		`,
		models.MessageStateVisible,
	)
	if err != nil {
		panic(err)
	}
}

var seedNames = []string{"John Doe", "Jane Doe", "Max Mustermann", "Erika Musterfrau"}

func randomName() string {
	return seedNames[rand.Intn(len(seedNames))]
}

func randomBool() bool {
	return rand.Intn(2) == 1
}
