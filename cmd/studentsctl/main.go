// studentsctl is a terminal front end for the students API. It shows one
// page of students at a time and reads short commands from stdin:
//
//	n / p / f / l        next, previous, first, last page
//	g <page>             go to page
//	limit <n>            page size (back to page 1)
//	s <text>             search; "s" alone clears it
//	add <first> <email> <age>
//	e <row> <first> <email> <age>
//	                     edit a row; last name and birth date are kept
//	d <row>              delete a row, then y to confirm or c to cancel
//	m <row>              open the marks of a row
//	ma <subject> <score> add a mark to the open student
//	me <n>               toggle edit mode of mark n
//	ms <n> <subject> <score>
//	                     save mark n, which must be in edit mode
//	md <n>               delete mark n, then y or c
//	mc                   close the marks
//	r                    refresh
//	q                    quit
//
// Usage:
//
//	go run ./cmd/studentsctl --addr=http://localhost:8082 [--token=<jwt>]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aanand-mishra/students-api/internal/client"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/view"
)

func main() {
	addr := flag.String("addr", "http://localhost:8082", "students API base URL")
	token := flag.String("token", os.Getenv("STUDENTS_TOKEN"), "bearer token, when the API requires one")
	limit := flag.Int("limit", 10, "rows per page")
	flag.Parse()

	var opts []client.Option
	if *token != "" {
		opts = append(opts, client.WithBearer(*token))
	}
	api := client.New(*addr, opts...)

	if err := run(context.Background(), api, *limit, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, api view.API, limit int, in io.Reader, out io.Writer) error {
	s, cmds := view.New(limit)
	s = drain(ctx, api, s, cmds)
	render(out, s)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}

		actions, quit, err := parse(s, sc.Text())
		if quit {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if len(actions) == 0 {
			continue
		}

		for _, a := range actions {
			s, cmds = view.Update(s, a)
			s = drain(ctx, api, s, cmds)
		}
		render(out, s)
	}
}

func drain(ctx context.Context, api view.API, s view.State, cmds []view.Command) view.State {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return view.Drain(ctx, api, s, cmds)
}

// parse maps one input line to the actions it stands for.
func parse(s view.State, line string) ([]view.Action, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false, nil
	}
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	one := func(a view.Action) ([]view.Action, bool, error) { return []view.Action{a}, false, nil }

	switch fields[0] {
	case "q", "quit":
		return nil, true, nil
	case "n":
		return one(view.Next{})
	case "p":
		return one(view.Prev{})
	case "f":
		return one(view.First{})
	case "l":
		return one(view.Last{})
	case "r":
		return one(view.Refresh{})
	case "s":
		return one(view.SetSearch{Search: arg})
	case "y":
		return one(view.ConfirmDelete{})
	case "c":
		return one(view.CancelDelete{})
	case "g":
		n, err := number(arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.GoTo{Page: n})
	case "limit":
		n, err := number(arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.SetLimit{Limit: n})
	case "d":
		st, err := row(s, arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.RequestDelete{Kind: view.KindStudent, ID: st.ID})
	case "m":
		st, err := row(s, arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.OpenMarks{StudentID: st.ID})
	case "add":
		if len(fields) != 4 {
			return nil, false, fmt.Errorf("usage: add <first> <email> <age>")
		}
		age, err := number(fields[3])
		if err != nil {
			return nil, false, err
		}
		draft := types.StudentInput{FirstName: fields[1], Email: fields[2], Age: age}
		return []view.Action{view.OpenCreate{}, view.EditDraft{Draft: draft}, view.Submit{}}, false, nil
	case "e":
		if len(fields) != 5 {
			return nil, false, fmt.Errorf("usage: e <row> <first> <email> <age>")
		}
		st, err := row(s, fields[1])
		if err != nil {
			return nil, false, err
		}
		age, err := number(fields[4])
		if err != nil {
			return nil, false, err
		}
		draft := types.StudentInput{FirstName: fields[2], LastName: st.LastName, DateOfBirth: st.DateOfBirth,
			Email: fields[3], Age: age}
		return []view.Action{view.OpenEdit{Student: st}, view.EditDraft{Draft: draft}, view.Submit{}}, false, nil

	case "mc":
		return one(view.CloseMarks{})
	case "ma":
		if !s.Marks.Open() {
			return nil, false, errNoMarks
		}
		in, err := markInput(fields[1:])
		if err != nil {
			return nil, false, fmt.Errorf("usage: ma <subject> <score>: %w", err)
		}
		return one(view.AddMark{Input: in})
	case "me":
		m, err := markRow(s, arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.ToggleMarkEdit{ID: m.ID})
	case "ms":
		if len(fields) < 2 {
			return nil, false, fmt.Errorf("usage: ms <n> <subject> <score>")
		}
		m, err := markRow(s, fields[1])
		if err != nil {
			return nil, false, err
		}
		if !s.Marks.Editing[m.ID] {
			return nil, false, fmt.Errorf("mark %s is not in edit mode, use me %s first", fields[1], fields[1])
		}
		in, err := markInput(fields[2:])
		if err != nil {
			return nil, false, fmt.Errorf("usage: ms <n> <subject> <score>: %w", err)
		}
		in.StudentID = m.StudentID
		return one(view.SaveMark{ID: m.ID, Input: in})
	case "md":
		m, err := markRow(s, arg)
		if err != nil {
			return nil, false, err
		}
		return one(view.RequestDelete{Kind: view.KindMark, ID: m.ID})
	}
	return nil, false, fmt.Errorf("unknown command %q", fields[0])
}

var errNoMarks = errors.New("no marks open, use m <row> first")

// markInput reads "<subject words...> <score>".
func markInput(fields []string) (types.MarkInput, error) {
	if len(fields) < 2 {
		return types.MarkInput{}, errors.New("subject and score required")
	}
	score, err := number(fields[len(fields)-1])
	if err != nil {
		return types.MarkInput{}, err
	}
	return types.MarkInput{Subject: strings.Join(fields[:len(fields)-1], " "), Marks: &score}, nil
}

func number(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return n, nil
}

// row resolves a 1-based row number on the current page.
func row(s view.State, raw string) (types.Student, error) {
	n, err := number(raw)
	if err != nil {
		return types.Student{}, err
	}
	if n < 1 || n > len(s.Result.Records) {
		return types.Student{}, fmt.Errorf("no row %d on this page", n)
	}
	return s.Result.Records[n-1], nil
}

// markRow resolves a 1-based row of the open marks table.
func markRow(s view.State, raw string) (types.Mark, error) {
	if !s.Marks.Open() {
		return types.Mark{}, errNoMarks
	}
	n, err := number(raw)
	if err != nil {
		return types.Mark{}, err
	}
	if n < 1 || n > len(s.Marks.Marks) {
		return types.Mark{}, fmt.Errorf("no mark %d", n)
	}
	return s.Marks.Marks[n-1], nil
}

func render(out io.Writer, s view.State) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tEMAIL\tAGE\tMARKS")
	for i, st := range s.Result.Records {
		name := strings.TrimSpace(st.FirstName + " " + st.LastName)
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", i+1, name, st.Email, st.Age, len(st.Marks))
	}
	w.Flush()

	fmt.Fprintf(out, "page %d/%d  total %d  limit %d", s.Query.Page, s.Result.TotalPages, s.Result.Total, s.Query.Limit)
	if s.Query.Search != "" {
		fmt.Fprintf(out, "  search %q", s.Query.Search)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[f]irst %s  [p]rev %s  [n]ext %s  [l]ast %s\n",
		onOff(s.CanFirst()), onOff(s.CanPrev()), onOff(s.CanNext()), onOff(s.CanLast()))

	if s.Marks.Open() {
		fmt.Fprintf(out, "marks of %s:\n", s.Marks.StudentID)
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for i, m := range s.Marks.Marks {
			mode := ""
			if s.Marks.Editing[m.ID] {
				mode = "editing"
			}
			fmt.Fprintf(w, "  %d\t%s\t%d\t%s\n", i+1, m.Subject, m.Marks, mode)
		}
		w.Flush()
	}
	if s.Confirm != nil && s.Confirm.Token != "" {
		fmt.Fprintf(out, "delete %s %s? [y/c]\n", s.Confirm.Kind, s.Confirm.ID)
	}
	if s.Err != "" {
		fmt.Fprintln(out, "error:", s.Err)
	}
}

func onOff(ok bool) string {
	if ok {
		return "on"
	}
	return "off"
}
