package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	"github.com/birdayz/kflow"
	"github.com/birdayz/kflow/internal/checkpoint"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kmessage"
)

func newRunCommand(g *globals) *cobra.Command {
	var (
		input    string
		debug    bool
		restore  string
		save     string
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "run <description>",
		Short: "Feed CSV input through a program and print its outputs",
		Long: `Run a program over CSV input. Each row is

  time,port,value[,value...]

where an empty port means i1 and vector payloads take one column per
element. Outputs are printed as JSON lines.`,
		Example: `  kflow run program.json --input data.csv
  kflow run program.yaml --input data.csv --restore state.snap --save state.snap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []kflow.Option{kflow.WithLogr(g.logr())}
			if maxSteps > 0 {
				opts = append(opts, kflow.WithMaxSteps(maxSteps))
			}

			p, err := loadProgram(args[0], restore, opts)
			if err != nil {
				return err
			}

			in := io.Reader(cmd.InOrStdin())
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			receive := p.ReceiveOn
			if debug {
				receive = p.ReceiveDebug
			}
			n, err := feedCSV(in, p, func(in kflow.Input) error {
				out, err := receive(in.Port, in.Message)
				if err != nil {
					return err
				}
				return printOutputs(cmd.OutOrStdout(), out)
			})
			if err != nil {
				return err
			}
			g.zlog.Info().Int("inputs", n).Str("program", args[0]).Msg("Run finished")

			if save != "" {
				if err := checkpoint.NewFile(save).Write(p.Collect()); err != nil {
					return fmt.Errorf("save state: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "CSV input file, - for stdin")
	cmd.Flags().BoolVar(&debug, "debug", false, "print every emission, ignoring the output filter")
	cmd.Flags().StringVar(&restore, "restore", "", "restore program state from this snapshot file")
	cmd.Flags().StringVar(&save, "save", "", "write program state to this snapshot file when done")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "maximum deliveries per input (0 keeps the default)")
	return cmd
}

// loadProgram builds the program from its description, or from the snapshot
// at restore when that file exists.
func loadProgram(path, restore string, opts []kflow.Option) (*kflow.Program, error) {
	if restore != "" {
		data, err := checkpoint.NewFile(restore).Read()
		switch {
		case err == nil:
			return kflow.Restore(data, registry(), opts...)
		case !errors.Is(err, checkpoint.ErrNotExist):
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}
	b, err := readDescription(path)
	if err != nil {
		return nil, err
	}
	return kflow.New(b, registry(), opts...)
}

// feedCSV parses rows from r and hands each to fn. It returns the number of
// rows fed.
func feedCSV(r io.Reader, p *kflow.Program, fn func(kflow.Input) error) (int, error) {
	entry, _ := p.Operator(p.Description().EntryOperator)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		line, _ := cr.FieldPos(0)

		in, err := parseRow(row, entry)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(in); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
}

func parseRow(row []string, entry koperator.Operator) (kflow.Input, error) {
	if len(row) < 3 {
		return kflow.Input{}, fmt.Errorf("want time,port,value, got %d columns", len(row))
	}
	t, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return kflow.Input{}, fmt.Errorf("time: %w", err)
	}
	port := row[1]
	if port == "" {
		port = koperator.DataPortName(1)
	}
	i := slices.IndexFunc(entry.Ports(), func(s koperator.PortSpec) bool {
		return s.Name == port && s.Class == koperator.DataInput
	})
	if i < 0 {
		return kflow.Input{}, fmt.Errorf("%w: %q", koperator.ErrUnknownPort, port)
	}

	spec := entry.Ports()[i]
	values := row[2:]
	var data kmessage.Payload
	switch spec.Type {
	case kmessage.KindNumber:
		v, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return kflow.Input{}, err
		}
		data = kmessage.Number(v)
	case kmessage.KindBoolean:
		v, err := strconv.ParseBool(values[0])
		if err != nil {
			return kflow.Input{}, err
		}
		data = kmessage.Boolean(v)
	case kmessage.KindVector:
		vec := make(kmessage.Vector, len(values))
		for i, s := range values {
			if vec[i], err = strconv.ParseFloat(s, 64); err != nil {
				return kflow.Input{}, err
			}
		}
		data = vec
	case kmessage.KindBooleanVector:
		vec := make(kmessage.BooleanVector, len(values))
		for i, s := range values {
			if vec[i], err = strconv.ParseBool(s); err != nil {
				return kflow.Input{}, err
			}
		}
		data = vec
	}
	return kflow.Input{Port: port, Message: kmessage.New(t, data)}, nil
}

type outputLine struct {
	Operator string         `json:"operator"`
	Port     string         `json:"port"`
	Message  jsontext.Value `json:"message"`
}

func printOutputs(w io.Writer, out kflow.Outputs) error {
	for _, op := range out.Operators() {
		for _, port := range slices.Sorted(maps.Keys(out[op])) {
			for _, m := range out[op][port] {
				b, err := m.MarshalJSON()
				if err != nil {
					return err
				}
				if err := json.MarshalWrite(w, outputLine{Operator: op, Port: port, Message: b}); err != nil {
					return err
				}
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
