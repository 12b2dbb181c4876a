package misc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type OptionType int

const (
	INT OptionType = iota
	STRING
)

type option struct {
	option_type   OptionType
	name          string
	default_value string
	help_msg      string
}

// CommandLineParser reads "--name value" pairs. "--help" is always
// registered and takes no value.
type CommandLineParser struct {
	options map[string]*option
	args    map[string]string
	order   []string
}

func (this *CommandLineParser) Init() {
	this.options = make(map[string]*option)
	this.args = make(map[string]string)
	this.order = make([]string, 0)
}

func (this *CommandLineParser) AddOption(
	option_type OptionType,
	name string,
	default_value string,
	help_msg string,
) {
	if _, found := this.options[name]; found {
		err := fmt.Errorf("option %s is already added", name)
		panic(err)
	}

	if option_type == INT {
		if _, err := strconv.ParseInt(default_value, 10, 64); err != nil {
			err := fmt.Errorf("default value %s of option %s is not an integer", default_value, name)
			panic(err)
		}
	}

	this.options[name] = &option{
		option_type:   option_type,
		name:          name,
		default_value: default_value,
		help_msg:      help_msg,
	}
	this.order = append(this.order, name)
}

// Parse consumes os.Args-style input; args[0] is the program name.
func (this *CommandLineParser) Parse(args []string) {
	for i := 1; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "--") {
			err := fmt.Errorf("argument %s is not an option", args[i])
			panic(err)
		}

		name := strings.TrimPrefix(args[i], "--")
		if name == "help" {
			this.args[name] = ""
			continue
		}

		opt, found := this.options[name]
		if !found {
			err := fmt.Errorf("option %s is not registered", name)
			panic(err)
		}

		if i+1 >= len(args) {
			err := fmt.Errorf("option %s is missing its value", name)
			panic(err)
		}
		i++

		if opt.option_type == INT {
			if _, err := strconv.ParseInt(args[i], 10, 64); err != nil {
				err := fmt.Errorf("option %s expects an integer, got %s", name, args[i])
				panic(err)
			}
		}
		this.args[name] = args[i]
	}
}

func (this *CommandLineParser) IsArgSet(name string) bool {
	_, found := this.args[name]
	return found
}

func (this *CommandLineParser) IntParameter(name string) int64 {
	opt := this.lookup(name)
	if opt.option_type != INT {
		err := fmt.Errorf("option %s is not an integer option", name)
		panic(err)
	}

	value, err := strconv.ParseInt(this.value(opt), 10, 64)
	if err != nil {
		panic(err)
	}
	return value
}

func (this *CommandLineParser) StringParameter(name string) string {
	opt := this.lookup(name)
	if opt.option_type != STRING {
		err := fmt.Errorf("option %s is not a string option", name)
		panic(err)
	}
	return this.value(opt)
}

func (this *CommandLineParser) StringifyHelpMsgs() string {
	var builder strings.Builder
	builder.WriteString("usage: NMPulator [--option value]...\n")
	for _, name := range this.order {
		opt := this.options[name]
		fmt.Fprintf(&builder, "  --%-24s %s (default: %s)\n", opt.name, opt.help_msg, opt.default_value)
	}
	return builder.String()
}

func (this *CommandLineParser) StringifyArgs() string {
	names := make([]string, 0, len(this.args))
	for name := range this.args {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("--%s %s", name, this.args[name]))
	}
	return strings.Join(parts, " ")
}

func (this *CommandLineParser) StringifyOptions() string {
	parts := make([]string, 0, len(this.order))
	for _, name := range this.order {
		parts = append(parts, fmt.Sprintf("%s=%s", name, this.value(this.options[name])))
	}
	return strings.Join(parts, "\n")
}

func (this *CommandLineParser) lookup(name string) *option {
	opt, found := this.options[name]
	if !found {
		err := errors.New("option " + name + " is not registered")
		panic(err)
	}
	return opt
}

func (this *CommandLineParser) value(opt *option) string {
	if value, found := this.args[opt.name]; found {
		return value
	}
	return opt.default_value
}
