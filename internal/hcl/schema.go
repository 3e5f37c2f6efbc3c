package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a definition file may contain.
type fileRoot struct {
	Scheduler *schedulerBlock `hcl:"scheduler,block"`
	Graphs    []*graphBlock   `hcl:"graph,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type schedulerBlock struct {
	Workers                   *int `hcl:"workers,optional"`
	TaskQueueCapacity         *int `hcl:"task_queue_capacity,optional"`
	NotificationQueueCapacity *int `hcl:"notification_queue_capacity,optional"`
}

type graphBlock struct {
	Name   string       `hcl:"name,label"`
	Repeat *bool        `hcl:"repeat,optional"`
	Runs   *int         `hcl:"runs,optional"`
	Tasks  []*taskBlock `hcl:"task,block"`
}

type taskBlock struct {
	Name      string         `hcl:"name,label"`
	Handler   *string        `hcl:"handler,optional"`
	Arguments *argsBlock     `hcl:"arguments,block"`
	Select    hcl.Expression `hcl:"select,optional"`
	Condition hcl.Expression `hcl:"condition,optional"`
	Argument  hcl.Expression `hcl:"argument,optional"`
	Graph     *string        `hcl:"graph,optional"`
	After     []string       `hcl:"after,optional"`
	Bypass    *bool          `hcl:"bypass,optional"`
	Notify    *string        `hcl:"notify,optional"`
}

type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
