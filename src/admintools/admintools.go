package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/hmndata"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/utils"
	"git.handmade.network/hmn/postmerge/src/website"
	"github.com/spf13/cobra"
)

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	mergePostsCommand := &cobra.Command{
		Use:   "mergeposts <target post id> <source post id>...",
		Short: "Merge posts into a target post, deleting the sources",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a target post id.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			ids, err := parseIDs(args)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			opts, err := mergeOptionsFromFlags(cmd)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			merged, err := website.NewDBPostMerger(conn).MergePosts(ctx, ids[0], ids[1:], opts)
			if err != nil {
				fmt.Printf("Failed to merge posts: %v\n", err)
				if errors.Is(err, db.NotFound) {
					fmt.Println("Check that none of the posts were deleted or merged already.")
				}
				os.Exit(1)
			}

			if merged {
				fmt.Printf("Merged %d posts into post %d.\n", len(ids)-1, ids[0])
			} else {
				fmt.Println("No source posts given; nothing to do.")
			}
		},
	}
	mergePostsCommand.Flags().Bool("alert", false, "Notify the authors of the merged posts")
	mergePostsCommand.Flags().Bool("noalert", false, "Do not notify authors, even if alerting is on by default")
	mergePostsCommand.Flags().String("reason", "", "Reason to include in alerts")
	mergePostsCommand.Flags().Bool("nolog", false, "Do not record the merge in the moderator log")
	mergePostsCommand.Flags().Int("actor", 0, "User id of the moderator doing the merge")
	mergePostsCommand.Flags().String("message", "", "New text (markdown) for the target post")
	mergePostsCommand.MarkFlagRequired("actor")
	mergePostsCommand.MarkFlagsMutuallyExclusive("alert", "noalert")
	adminCommand.AddCommand(mergePostsCommand)

	rebuildThreadsCommand := &cobra.Command{
		Use:   "rebuildthreads <thread id>...",
		Short: "Recompute thread counters, post positions and forum counters",
		Run: func(cmd *cobra.Command, args []string) {
			threadIDs, err := parseIDs(args)
			if err != nil || len(threadIDs) == 0 {
				fmt.Printf("You must provide thread ids.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			tx, err := hmndata.NewStore(conn).Begin(ctx)
			if err != nil {
				panic(err)
			}
			defer tx.Rollback(ctx)

			var forumIDs []int
			for _, threadID := range threadIDs {
				thread, err := merge.RebuildThread(ctx, tx, threadID)
				if err != nil {
					fmt.Printf("Failed to rebuild thread %d: %v\n", threadID, err)
					os.Exit(1)
				}
				forumIDs = append(forumIDs, thread.ForumID)
				fmt.Printf("Thread %d: %d replies\n", thread.ID, thread.ReplyCount)
			}
			for _, forumID := range utils.Distinct(forumIDs) {
				if err := tx.RebuildForumCounters(ctx, forumID); err != nil {
					panic(err)
				}
			}

			if err := tx.Commit(ctx); err != nil {
				panic(err)
			}
			fmt.Printf("Rebuilt %d threads.\n", len(threadIDs))
		},
	}
	adminCommand.AddCommand(rebuildThreadsCommand)

	createForumCommand := &cobra.Command{
		Use:   "createforum",
		Short: "Create a new forum",
		Run: func(cmd *cobra.Command, args []string) {
			name, _ := cmd.Flags().GetString("name")
			slug, _ := cmd.Flags().GetString("slug")
			blurb, _ := cmd.Flags().GetString("blurb")
			noCount, _ := cmd.Flags().GetBool("nocount")

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			newID, err := db.QueryOneScalar[int](ctx, conn,
				`
				INSERT INTO forum (name, slug, blurb, count_messages)
				VALUES ($1, $2, $3, $4)
				RETURNING id
				`,
				name,
				slug,
				blurb,
				!noCount,
			)
			if err != nil {
				panic(err)
			}

			fmt.Printf("Created new forum with id: %d\n", newID)
		},
	}
	createForumCommand.Flags().String("name", "", "")
	createForumCommand.Flags().String("slug", "", "")
	createForumCommand.Flags().String("blurb", "", "")
	createForumCommand.Flags().Bool("nocount", false, "Posts in this forum do not count toward users' message counts")
	createForumCommand.MarkFlagRequired("name")
	createForumCommand.MarkFlagRequired("slug")
	adminCommand.AddCommand(createForumCommand)

	modLogCommand := &cobra.Command{
		Use:   "modlog [content id]...",
		Short: "Show moderator log entries, such as merges",
		Run: func(cmd *cobra.Command, args []string) {
			contentIDs, err := parseIDs(args)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			contentType, _ := cmd.Flags().GetString("type")
			actorID, _ := cmd.Flags().GetInt("actor")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			entries, err := hmndata.FetchModeratorLog(ctx, conn, hmndata.ModeratorLogQuery{
				ContentType: contentType,
				ContentIDs:  contentIDs,
				ActorID:     actorID,
				Limit:       limit,
			})
			if err != nil {
				panic(err)
			}

			for _, entry := range entries {
				fmt.Printf("%s  %-12s %s %d by user %d %v\n",
					entry.Date.Format(time.RFC3339),
					entry.Action,
					entry.ContentType,
					entry.ContentID,
					entry.ActorID,
					entry.Params,
				)
			}
			fmt.Printf("%d entries\n", len(entries))
		},
	}
	modLogCommand.Flags().String("type", models.ContentTypePost, "Content type to show entries for (empty for all)")
	modLogCommand.Flags().Int("actor", 0, "Only show actions by this user id")
	modLogCommand.Flags().Int("limit", 100, "Maximum number of entries to show")
	adminCommand.AddCommand(modLogCommand)

	queuedJobsCommand := &cobra.Command{
		Use:   "queuedjobs [job type]",
		Short: "List jobs waiting in the job queue",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var jobType string
			if len(args) > 0 {
				jobType = args[0]
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			queued, err := hmndata.FetchQueuedJobs(ctx, conn, jobType)
			if err != nil {
				panic(err)
			}

			for _, job := range queued {
				fmt.Printf("%d  %s  %s %v\n", job.ID, job.QueuedDate.Format(time.RFC3339), job.JobType, job.Payload)
			}
			fmt.Printf("%d jobs queued\n", len(queued))
		},
	}
	adminCommand.AddCommand(queuedJobsCommand)
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("'%s' is not a valid id", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func mergeOptionsFromFlags(cmd *cobra.Command) (merge.Options, error) {
	flags := cmd.Flags()

	opts := merge.Options{
		SendAlert: config.Config.Merge.AlertByDefault,
	}
	if alert, _ := flags.GetBool("alert"); alert {
		opts.SendAlert = true
	}
	if noAlert, _ := flags.GetBool("noalert"); noAlert {
		opts.SendAlert = false
	}

	opts.AlertReason, _ = flags.GetString("reason")
	noLog, _ := flags.GetBool("nolog")
	opts.Log = !noLog
	opts.ActorID, _ = flags.GetInt("actor")

	if flags.Changed("message") {
		message, _ := flags.GetString("message")
		opts.Message = &message
	}

	return opts, opts.Validate()
}
