// Package cli implements ftsc, the command line client for FTS expressions.
// Expressions are compiled locally; queries run against a YAML corpus loaded
// in-process or against a running query service over RPC.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/corpus"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/executor"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

// backend is what compile and query run against.
type backend interface {
	Compile(ctx context.Context, req proto.CompileRequest) (*proto.CompileResponse, error)
	Query(ctx context.Context, req proto.QueryRequest) (*proto.QueryPage, error)
}

type remoteBackend struct {
	client *grpc.Client
}

func (r *remoteBackend) Compile(ctx context.Context, req proto.CompileRequest) (*proto.CompileResponse, error) {
	var resp proto.CompileResponse
	if err := r.client.Call(ctx, proto.MethodCompile, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *remoteBackend) Query(ctx context.Context, req proto.QueryRequest) (*proto.QueryPage, error) {
	var page proto.QueryPage
	if err := r.client.Call(ctx, proto.MethodQuery, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type app struct {
	corpusPath string
	remote     string

	backend backend
	close   func() error
}

// NewRootCmd builds the ftsc command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ftsc",
		Short: "Compile and run FTS expressions",
		Long: `ftsc compiles FTS expressions and runs them as queries.

Examples:
  ftsc parse 'cat -"black dog"'
  ftsc compile 'report OR memo'
  ftsc query --corpus configs/corpus.yaml -s a:doc -s b:note revenue
  ftsc query --remote localhost:9100 --json budget
  ftsc shell --corpus configs/corpus.yaml`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}
	root.PersistentFlags().StringVar(&a.corpusPath, "corpus", "", "YAML corpus to query in-process")
	root.PersistentFlags().StringVar(&a.remote, "remote", "", "RPC address of a running query service (host:port)")

	root.AddCommand(newParseCmd(), newCompileCmd(a), newQueryCmd(a), newShellCmd(a))
	return root
}

// Execute runs ftsc with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// connect opens the query backend once: the remote service when --remote is
// set, otherwise an in-process engine over --corpus.
func (a *app) connect() (backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	if a.remote != "" {
		client, err := grpc.Dial(a.remote)
		if err != nil {
			return nil, err
		}
		a.backend = &remoteBackend{client: client}
		a.close = client.Close
		return a.backend, nil
	}
	if a.corpusPath == "" {
		return nil, fmt.Errorf("either --corpus or --remote is required to run queries")
	}
	docs, err := corpus.LoadYAML(a.corpusPath)
	if err != nil {
		return nil, err
	}
	cat := catalog.New()
	corpus.Index(cat, docs)
	defaultSelector := ""
	if names := cat.Names(); len(names) > 0 {
		defaultSelector = names[0]
	}
	a.backend = searcher.NewService(executor.New(cat), nil, nil, nil, nil, searcher.Options{
		DefaultSelector: defaultSelector,
		DefaultField:    catalog.DefaultField,
	})
	return a.backend, nil
}

// compiler returns the remote backend when --remote is set, and a local
// compiler otherwise. Compiling never needs a corpus.
func (a *app) compiler() (backend, error) {
	if a.backend != nil || a.remote != "" {
		return a.connect()
	}
	return searcher.NewService(nil, nil, nil, nil, nil, searcher.Options{}), nil
}

func (a *app) shutdown() error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	a.backend = nil
	return err
}
