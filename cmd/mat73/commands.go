package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/scigolib/mat73"
	"github.com/scigolib/mat73/internal/config"
	"github.com/scigolib/mat73/internal/state"
)

var errNoFile = errors.New("no MAT-file specified")

func openReader(ctx context.Context, cmd *cli.Command) (*mat73.Reader, error) {
	env := state.EnvFromContext(ctx)
	if cmd.NArg() == 0 {
		return nil, errNoFile
	}
	return mat73.NewReader(cmd.Args().First(), mat73.WithLogger(env.Log))
}

func runList(ctx context.Context, cmd *cli.Command) error {
	r, err := openReader(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	order := cmd.String("sort")
	if order != "storage" && order != "natural" {
		return fmt.Errorf("unknown sort order '%s'", order)
	}
	return listVariables(os.Stdout, r.File().Root(), cmd.Bool("all"), order == "natural")
}

func listVariables(w io.Writer, root *mat73.Group, all, naturalOrder bool) error {
	var objs []mat73.Object
	for _, c := range root.Children() {
		if all || !mat73.IsInternal(c.Name()) {
			objs = append(objs, c)
		}
	}
	if naturalOrder {
		sort.SliceStable(objs, func(i, j int) bool {
			return natural.Less(objs[i].Name(), objs[j].Name())
		})
	}
	for _, obj := range objs {
		kind, class, shape := describe(obj)
		if _, err := fmt.Fprintf(w, "%-24s %-11s %-8s %s\n", obj.Name(), kind, class, shape); err != nil {
			return err
		}
	}
	return nil
}

func describe(obj mat73.Object) (kind, class, shape string) {
	switch o := obj.(type) {
	case *mat73.Group:
		return "group", o.Class(), fmt.Sprintf("%d fields", len(o.Children()))
	case *mat73.Dataset:
		dims, err := o.Shape()
		if err != nil {
			return "dataset", o.Class(), "?"
		}
		parts := make([]string, len(dims))
		for i, d := range dims {
			parts[i] = fmt.Sprint(d)
		}
		return "dataset", o.Class(), strings.Join(parts, "x")
	case *mat73.Unsupported:
		return "unsupported", "", o.Reason().Error()
	}
	return fmt.Sprintf("%T", obj), "", ""
}

func runConvert(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	r, err := openReader(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	format, indent := env.Cfg.Output.Format, env.Cfg.Output.Indent
	if cmd.IsSet("to") {
		format = cmd.String("to")
	}
	if cmd.IsSet("indent") {
		indent = cmd.Int("indent")
	}

	names := cmd.Args().Tail()
	if len(names) == 0 {
		if names, err = r.Variables(); err != nil {
			return err
		}
	}

	result := mat73.NewStruct()
	var errs error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := r.GetStruct(name, mat73.Portable)
		if err != nil {
			env.Log.Error("Unable to convert variable", zap.String("variable", name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := result.Merge(s); err != nil {
			env.Log.Error("Unable to convert variable", zap.String("variable", name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		env.Log.Debug("Variable converted", zap.String("variable", name))
	}

	data, err := encode(result, format, indent)
	if err != nil {
		return err
	}

	out := os.Stdout
	if fname := cmd.String("output"); len(fname) > 0 {
		if out, err = os.Create(fname); err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
		env.Log.Info("Writing output", zap.String("file", fname), zap.String("format", format), zap.Int("variables", result.Len()))
	}
	if _, err := out.Write(data); err != nil {
		return multierr.Append(errs, fmt.Errorf("unable to write output: %w", err))
	}
	return errs
}

// encode renders s as JSON or YAML. Key order is kept in both.
func encode(s *mat73.Struct, format string, indent int) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		if indent > 0 {
			data, err = json.MarshalIndent(s, "", strings.Repeat(" ", indent))
		} else {
			data, err = json.Marshal(s)
		}
		data = append(data, '\n')
	case "yaml":
		if indent > 0 {
			data, err = yaml.MarshalWithOptions(s, yaml.Indent(indent))
		} else {
			data, err = yaml.Marshal(s)
		}
	default:
		return nil, fmt.Errorf("unknown output format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", format, err)
	}
	return data, nil
}

func runPrint(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	r, err := openReader(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	names := cmd.Args().Tail()
	if len(names) == 0 {
		return errors.New("no variables specified")
	}
	var errs error
	for _, name := range names {
		s, err := r.GetStruct(name, mat73.Native)
		if err != nil {
			env.Log.Error("Unable to resolve variable", zap.String("variable", name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := mat73.PrintStructure(os.Stdout, s, mat73.WithColor(config.EnableColorOutput(os.Stdout))); err != nil {
			return err
		}
	}
	return errs
}
