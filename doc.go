/*
Package weft provides the shared-state and asynchronous-task plumbing that an
application shell sits on top of.

It is organized as a set of small packages that compose through plain Go
interfaces rather than a framework.

# Packages

  - pkg/event: typed emitters and Disposer aggregation.
  - pkg/async: Deferred values and cooperative cancellation.
  - pkg/store: observable stores, Combine and selector subscriptions.
  - pkg/middleware: ordered, rejectable update pipelines.
  - pkg/task: tracked cancelable tasks and polling.
  - pkg/query: query lifecycle state with debounced fetch and refetch.
  - pkg/transient: keyed scratch data persisted through pkg/ports snapshot stores.

# Usage

Combine two stores and react only when a derived slice changes:

	user := store.New(User{Name: "ana"})
	prefs := store.New(Prefs{Theme: "dark"})
	both := store.Combine(user, prefs)

	stop := store.SubscribeSelector(both,
		func() string { return prefs.State().Theme },
		func(theme, prev string) { log.Println("theme", prev, "->", theme) },
	)
	defer stop()

	prefs.Update(func(p *Prefs) { p.Theme = "light" })

Poll until a job finishes, canceling everything on shutdown:

	tasks := task.NewManager()
	p := task.Poll(tasks, checkJob, task.PollOptions[Job]{
		Interval:   time.Second,
		IsFinished: func(j Job) bool { return j.Done },
	})
	job, err := p.Run(ctx, "job-42")

The weft command (cmd/weft) wires these packages from a YAML config and
serves an inspection API and an MCP tool server.
*/
package weft
