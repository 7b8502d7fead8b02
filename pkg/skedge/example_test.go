package skedge_test

import (
	"fmt"
	"time"

	"skedge/pkg/skedge"
)

func Example() {
	clk := skedge.NewFakeClock(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC))
	s := skedge.New(skedge.WithClock(clk))

	greet := func(name string) { fmt.Println("hello,", name) }
	if err := s.Every(10).Seconds().Do(s, skedge.Func1("greet", greet, "Cool Person")); err != nil {
		fmt.Println("error:", err)
		return
	}

	clk.Advance(10 * time.Second)
	if err := s.RunPending(); err != nil {
		fmt.Println("error:", err)
	}
	next, _ := s.NextRun()
	fmt.Println(next.Format(time.TimeOnly))
	// Output:
	// hello, Cool Person
	// 07:00:20
}

func ExampleJob_At() {
	clk := skedge.NewFakeClock(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC))
	s := skedge.New(skedge.WithClock(clk))

	_ = s.EverySingle().Minute().At(":15").Run(s, func() {})
	_ = s.EverySingle().Hour().At(":30").Run(s, func() {})
	_ = s.EverySingle().Hour().At("45:00").Run(s, func() {})
	_ = s.EverySingle().Wednesday().At("13:30").Run(s, func() {})
	_ = s.Every(10).Days().At("00:00:12").Run(s, func() {})

	for _, j := range s.Jobs("") {
		fmt.Println(j.NextRun().Format("Mon Jan 2 15:04:05"))
	}
	// Output:
	// Mon Jan 1 07:00:15
	// Mon Jan 1 07:00:30
	// Mon Jan 1 07:45:00
	// Wed Jan 3 13:30:00
	// Thu Jan 11 00:00:12
}

func ExampleJob_Until() {
	clk := skedge.NewFakeClock(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC))
	s := skedge.New(skedge.WithClock(clk))

	deadline := clk.Now().Add(10 * time.Minute)
	err := s.EverySingle().Minute().At(":15").Until(deadline).Run(s, func() {})
	fmt.Println(err, s.Len())

	err = s.EverySingle().Minute().Until(clk.Now().Add(-time.Second)).Run(s, func() {})
	fmt.Println(err != nil)
	// Output:
	// <nil> 1
	// true
}

func ExampleScheduler_Clear() {
	s := skedge.New()
	_ = s.Every(5).Seconds().Tag("fast").Run(s, func() {})
	_ = s.Every(10).Minutes().Run(s, func() {})

	fmt.Println(len(s.Jobs("")), len(s.Jobs("fast")))
	fmt.Println(s.Clear("fast"), s.Len())
	// Output:
	// 2 1
	// 1 1
}
