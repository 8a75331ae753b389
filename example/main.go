package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quillorm/quill"
	"github.com/quillorm/quill/pkg/client"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// 1) Parse schema.quill + quill.yaml and connect
	db, err := quill.Open("schema.quill", "quill.yaml", client.WithLogger(logger))
	if err != nil {
		panic(fmt.Errorf("open: %w", err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		panic(fmt.Errorf("connect: %w", err))
	}

	// 2) Apply pending migrations
	if err := db.Migrate(); err != nil {
		panic(fmt.Errorf("migrate: %w", err))
	}

	// 3) Create a user together with a first post in one transaction
	user, err := db.Client.Create(ctx, "User", client.Mutation{
		"email": "alice@example.com",
		"name":  "Alice",
		"posts": client.RelationWrite{
			Directive: client.DirectiveCreate,
			Data:      client.Mutation{"title": "hello world"},
		},
	})
	if err != nil {
		panic(fmt.Errorf("create user: %w", err))
	}
	fmt.Printf("created user %v\n", user["id"])

	// 4) Upsert keyed by the unique email
	_, err = db.Client.Upsert(ctx, "User",
		client.UniqueWhere{"email": "alice@example.com"},
		client.Mutation{"email": "alice@example.com", "name": "Alice"},
		client.Mutation{"name": "Alice Smith"},
	)
	if err != nil {
		panic(fmt.Errorf("upsert user: %w", err))
	}

	// 5) Batch update every post of that user
	res, err := db.Client.UpdateMany(ctx, "Post",
		client.Filter{"authorId": user["id"]},
		client.Mutation{"title": "renamed"},
	)
	if err != nil {
		panic(fmt.Errorf("update posts: %w", err))
	}
	fmt.Printf("updated %d posts\n", res.Count)

	// 6) Clean up
	if _, err := db.Client.DeleteMany(ctx, "Post", client.Filter{"authorId": user["id"]}); err != nil {
		panic(fmt.Errorf("delete posts: %w", err))
	}
	if _, err := db.Client.Delete(ctx, "User", client.UniqueWhere{"id": user["id"]}); err != nil {
		panic(fmt.Errorf("delete user: %w", err))
	}
}
