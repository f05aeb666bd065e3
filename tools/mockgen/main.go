// Command mockgen writes a synthetic Java project for load testing the
// analyzer and the impact queries.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config describes the generated project.
type Config struct {
	OutputDir   string
	NumClasses  int
	NumFields   int
	NumMethods  int
	MaxDepth    int
	CallDensity float64
	Seed        uint64
}

// methodInfo is one service method in the generated project.
type methodInfo struct {
	Class string
	Name  string
	Depth int
}

// access is a generated statement inside a service method.
type access struct {
	Class  string
	Member string
	Write  bool
	Call   bool
}

const javaPackage = "com.example.mock"

func main() {
	cfg := Config{}
	cmd := &cobra.Command{
		Use:   "mockgen",
		Short: "Generate a synthetic Java project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating mock project...\n")
			fmt.Fprintf(out, "  classes:          %d\n", cfg.NumClasses)
			fmt.Fprintf(out, "  fields per class: %d\n", cfg.NumFields)
			fmt.Fprintf(out, "  methods:          %d\n", cfg.NumClasses*cfg.NumMethods)
			fmt.Fprintf(out, "  max depth:        %d\n", cfg.MaxDepth)
			fmt.Fprintf(out, "  call density:     %.1f\n", cfg.CallDensity)

			if err := Generate(&cfg); err != nil {
				return err
			}

			fmt.Fprintf(out, "\n✓ project written to %s\n", cfg.OutputDir)
			fmt.Fprintf(out, "\nNext:\n  beyondsight analyze %s\n", cfg.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", "./mock-project", "output directory")
	cmd.Flags().IntVar(&cfg.NumClasses, "classes", 50, "number of classes")
	cmd.Flags().IntVar(&cfg.NumFields, "fields", 5, "fields per class")
	cmd.Flags().IntVar(&cfg.NumMethods, "methods", 20, "service methods per class")
	cmd.Flags().IntVar(&cfg.MaxDepth, "depth", 8, "maximum call depth")
	cmd.Flags().Float64Var(&cfg.CallDensity, "density", 3.0, "average statements per method")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "random seed")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Generate writes the project described by cfg. The same seed always
// produces the same sources.
func Generate(cfg *Config) error {
	if cfg.NumClasses <= 0 || cfg.NumMethods <= 0 || cfg.MaxDepth <= 0 {
		return fmt.Errorf("classes, methods and depth must be positive")
	}
	dir := filepath.Join(append([]string{cfg.OutputDir, "src", "main", "java"}, strings.Split(javaPackage, ".")...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	methods := methodRegistry(cfg)
	byDepth := organizeByDepth(methods, cfg.MaxDepth)

	for c := 0; c < cfg.NumClasses; c++ {
		name := className(c)
		own := methods[c*cfg.NumMethods : (c+1)*cfg.NumMethods]
		bodies := make([][]access, len(own))
		for i, m := range own {
			bodies[i] = generateBody(rng, m, byDepth, cfg)
		}
		src := generateClass(name, cfg.NumFields, own, bodies)
		if err := os.WriteFile(filepath.Join(dir, name+".java"), []byte(src), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func className(i int) string { return fmt.Sprintf("Entity%04d", i) }

func fieldName(i int) string { return fmt.Sprintf("value%02d", i) }

func accessorSuffix(i int) string { return fmt.Sprintf("Value%02d", i) }

func methodRegistry(cfg *Config) []*methodInfo {
	var methods []*methodInfo
	for c := 0; c < cfg.NumClasses; c++ {
		for m := 0; m < cfg.NumMethods; m++ {
			methods = append(methods, &methodInfo{
				Class: className(c),
				Name:  fmt.Sprintf("process%03d", m),
			})
		}
	}
	return methods
}

// organizeByDepth spreads methods evenly across the call layers.
func organizeByDepth(methods []*methodInfo, maxDepth int) [][]*methodInfo {
	layers := make([][]*methodInfo, maxDepth+1)
	for i, m := range methods {
		m.Depth = i % (maxDepth + 1)
		layers[m.Depth] = append(layers[m.Depth], m)
	}
	return layers
}

// generateBody picks statements for m. Methods only call deeper layers, so
// the call graph is acyclic. Leaves touch fields through accessors.
func generateBody(rng *rand.Rand, m *methodInfo, layers [][]*methodInfo, cfg *Config) []access {
	n := rng.IntN(int(cfg.CallDensity*2)+1) + 1
	var body []access
	seen := make(map[string]bool)
	for range n {
		var a access
		if m.Depth < len(layers)-1 && rng.Float64() < 0.6 {
			next := layers[m.Depth+1]
			if rng.Float64() >= 0.8 {
				d := m.Depth + 1 + rng.IntN(len(layers)-m.Depth-1)
				next = layers[d]
			}
			if len(next) == 0 {
				continue
			}
			target := next[rng.IntN(len(next))]
			a = access{Class: target.Class, Member: target.Name, Call: true}
		} else if cfg.NumFields > 0 {
			a = access{
				Class:  className(rng.IntN(cfg.NumClasses)),
				Member: accessorSuffix(rng.IntN(cfg.NumFields)),
				Write:  rng.IntN(2) == 0,
			}
		} else {
			continue
		}
		key := fmt.Sprintf("%s.%s.%t", a.Class, a.Member, a.Write)
		if seen[key] {
			continue
		}
		seen[key] = true
		body = append(body, a)
	}
	return body
}

func generateClass(name string, numFields int, methods []*methodInfo, bodies [][]access) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s;\n\n", javaPackage)
	fmt.Fprintf(&sb, "public class %s {\n", name)

	for f := 0; f < numFields; f++ {
		fmt.Fprintf(&sb, "    private int %s;\n", fieldName(f))
	}
	sb.WriteString("\n")

	for f := 0; f < numFields; f++ {
		fmt.Fprintf(&sb, "    public int get%s() {\n        return this.%s;\n    }\n\n", accessorSuffix(f), fieldName(f))
		fmt.Fprintf(&sb, "    public void set%s(int v) {\n        this.%s = v;\n    }\n\n", accessorSuffix(f), fieldName(f))
	}

	for i, m := range methods {
		fmt.Fprintf(&sb, "    // depth %d\n", m.Depth)
		fmt.Fprintf(&sb, "    public static int %s(int input) {\n", m.Name)
		sb.WriteString("        int result = input;\n")
		for j, a := range bodies[i] {
			switch {
			case a.Call:
				fmt.Fprintf(&sb, "        result += %s.%s(result + %d);\n", a.Class, a.Member, j)
			case a.Write:
				fmt.Fprintf(&sb, "        new %s().set%s(result);\n", a.Class, a.Member)
			default:
				fmt.Fprintf(&sb, "        result += new %s().get%s();\n", a.Class, a.Member)
			}
		}
		sb.WriteString("        return result;\n    }\n\n")
	}

	sb.WriteString("}\n")
	return sb.String()
}
