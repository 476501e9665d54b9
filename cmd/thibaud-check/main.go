// Package main implements thibaud-check, a schema linter that runs the
// per-engine diagnostics against a declared table layout.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/mssql"
	"github.com/zoobzio/thibaud/mysql"
	"github.com/zoobzio/thibaud/oracle"
	"github.com/zoobzio/thibaud/postgres"
	"github.com/zoobzio/thibaud/schema"
	"github.com/zoobzio/thibaud/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// config mirrors the YAML layout consumed by the tool.
type config struct {
	Engine string        `mapstructure:"engine"`
	Name   string        `mapstructure:"name"`
	Tables []tableConfig `mapstructure:"tables"`
}

type tableConfig struct {
	Name       string           `mapstructure:"name"`
	PrimaryKey string           `mapstructure:"primary_key"`
	Columns    []columnConfig   `mapstructure:"columns"`
	Relations  []relationConfig `mapstructure:"relations"`
	Indexes    []indexConfig    `mapstructure:"indexes"`
}

type columnConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

type relationConfig struct {
	Name     string `mapstructure:"name"`
	Column   string `mapstructure:"column"`
	Table    string `mapstructure:"table"`
	Nullable bool   `mapstructure:"nullable"`
}

type indexConfig struct {
	Name   string   `mapstructure:"name"`
	Fields []string `mapstructure:"fields"`
}

// checker is the diagnostic surface every dialect package exposes.
type checker interface {
	Name() string
	Check(meta types.Meta, table string, indexes []*schema.Index) *checks.Diagnostics
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		engine     string
		failLevel  string
	)

	cmd := &cobra.Command{
		Use:   "thibaud-check",
		Short: "Lint a table layout against a SQL engine's limits",
		Long: "thibaud-check reads a YAML schema description and reports the\n" +
			"warnings and errors the target engine's dialect raises for it.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if engine != "" {
				cfg.Engine = engine
			}
			return runCheck(cmd, cfg, failLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "thibaud.yaml", "Path to schema config")
	cmd.Flags().StringVar(&engine, "engine", "", "Engine override (postgres, sqlite, mysql, mariadb, mssql, oracle)")
	cmd.Flags().StringVar(&failLevel, "fail-level", "error", "Diagnostic level that fails the run (warning or error)")

	return cmd
}

func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("THIBAUD")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("config declares no tables")
	}
	return &cfg, nil
}

func runCheck(cmd *cobra.Command, cfg *config, failLevel string) error {
	d, err := dialectFor(cfg.Engine)
	if err != nil {
		return err
	}

	s, err := buildSchema(cfg)
	if err != nil {
		return err
	}

	all := &checks.Diagnostics{}
	for _, t := range cfg.Tables {
		indexes, err := buildIndexes(t)
		if err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
		all.Merge(d.Check(s, t.Name, indexes))
	}

	out := cmd.OutOrStdout()
	if len(all.Messages()) == 0 {
		fmt.Fprintf(out, "%s: no issues found\n", d.Name())
		return nil
	}
	all.Pretty(out)

	switch strings.ToLower(failLevel) {
	case "warning":
		if all.HasWarnings() || all.HasErrors() {
			return fmt.Errorf("diagnostics at or above warning level")
		}
	case "error":
		if all.HasErrors() {
			return fmt.Errorf("diagnostics at error level")
		}
	default:
		return fmt.Errorf("unknown fail level %q", failLevel)
	}
	return nil
}

func dialectFor(engine string) (checker, error) {
	switch strings.ToLower(engine) {
	case "postgres", "postgresql":
		return postgres.New(), nil
	case "sqlite", "sqlite3":
		return sqlite.New(), nil
	case "mysql":
		return mysql.New(), nil
	case "mariadb":
		return mysql.NewMariaDB(), nil
	case "mssql", "sqlserver":
		return mssql.New(), nil
	case "oracle":
		return oracle.New(), nil
	case "":
		return nil, fmt.Errorf("no engine configured; set engine: in the config or pass --engine")
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}

func buildSchema(cfg *config) (*thibaud.Schema, error) {
	name := cfg.Name
	if name == "" {
		name = "schema"
	}
	project := dbml.NewProject(name)
	var opts []thibaud.SchemaOption
	for _, t := range cfg.Tables {
		table := dbml.NewTable(t.Name)
		for _, c := range t.Columns {
			table.AddColumn(dbml.NewColumn(c.Name, c.Type))
		}
		project.AddTable(table)
		if t.PrimaryKey != "" {
			opts = append(opts, thibaud.WithPrimaryKey(t.Name, t.PrimaryKey))
		}
	}
	s, err := thibaud.NewSchema(project, opts...)
	if err != nil {
		return nil, err
	}
	for _, t := range cfg.Tables {
		for _, r := range t.Relations {
			if err := s.Relate(t.Name, r.Name, r.Column, r.Table, r.Nullable); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func buildIndexes(t tableConfig) ([]*schema.Index, error) {
	out := make([]*schema.Index, 0, len(t.Indexes))
	for _, ic := range t.Indexes {
		fields := make([]schema.IndexField, 0, len(ic.Fields))
		for _, f := range ic.Fields {
			col, desc := strings.CutPrefix(f, "-")
			fields = append(fields, schema.IndexField{Column: col, Descending: desc})
		}
		idx, err := schema.NewIndex(ic.Name, fields...)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}
