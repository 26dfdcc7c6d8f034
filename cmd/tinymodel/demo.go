package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/hatlonely/tinymodel/rdb"
	"github.com/hatlonely/tinymodel/rdb/query"
)

func newDemoCommand(load func() (*rdb.EngineOptions, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Insert a user, a thing and a favourite, then fetch them with a nested join",
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := load()
			if err != nil {
				return err
			}

			engine, err := rdb.NewEngineWithOptions(options)
			if err != nil {
				return err
			}
			defer engine.Close()

			return runDemo(cmd.Context(), engine, cmd.OutOrStdout())
		},
	}
}

func runDemo(ctx context.Context, engine *rdb.Engine, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := engine.Migrate(ctx); err != nil {
		return err
	}

	users, err := engine.Model("User")
	if err != nil {
		return err
	}
	things, err := engine.Model("Thing")
	if err != nil {
		return err
	}
	favourites, err := engine.Model("Favourite")
	if err != nil {
		return err
	}

	res := users.Insert(ctx, rdb.Record{
		"username": "geoff",
		"email":    "something@somewhere.com",
	})
	if err := res.Err(); err != nil {
		return errors.WithMessage(err, "insert geoff")
	}
	userID := res.InsertID
	fmt.Fprintf(out, "geoff was inserted with id %d\n", userID)

	res = things.Insert(ctx, rdb.Record{"thingname": "squishy"})
	if err := res.Err(); err != nil {
		return errors.WithMessage(err, "insert squishy")
	}
	thingID := res.InsertID
	fmt.Fprintf(out, "added thing with id %d\n", thingID)

	res = favourites.Insert(ctx, rdb.Record{"userid": userID, "thingid": thingID})
	if err := res.Err(); err != nil {
		return errors.WithMessage(err, "insert favourite")
	}
	fmt.Fprintf(out, "added favourite with id %d\n", res.InsertID)

	res = users.Fetch(ctx, query.Eq("userid", userID),
		query.NewJoin("Favourite", query.On("userid"),
			query.NewJoin("Thing", query.On("thingid")),
		),
	)
	if err := res.Err(); err != nil {
		return errors.WithMessage(err, "fetch geoff")
	}

	buf, err := json.Marshal(res.Entities)
	if err != nil {
		return errors.Wrap(err, "json.Marshal failed")
	}
	if _, err := out.Write(pretty.Pretty(buf)); err != nil {
		return err
	}

	if len(res.Entities) == 0 {
		return errors.New("geoff not found")
	}
	faves := res.Entities[0].Related("favourites")
	if len(faves) == 0 || len(faves[0].Related("things")) == 0 {
		return errors.New("geoff's favourite is missing")
	}
	name, _ := faves[0].Related("things")[0].String("thingname")
	fmt.Fprintf(out, "got geoff's fave, joined to the thing itself: %s\n", name)
	return nil
}
