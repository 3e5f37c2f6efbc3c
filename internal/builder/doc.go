/*
Package builder turns a loaded config.Model into runnable graph.Graph values.

Construction happens in three passes per definition file set:

 1. Validation: task names, kinds, handler names, `after` targets and
    subgraph references are checked against the model and the registry.
    Dependency cycles inside a graph and cycles through subgraph references
    are rejected here, since the engine itself never looks for them.

 2. Node creation: every task becomes one node. Its kind is inferred from
    the attributes it sets:

	graph     -> graph.Subgraph
	select    -> graph.Switch
	condition -> graph.Condition
	argument  -> graph.Dynamic
	otherwise -> graph.Static

 3. Linking: `after` entries become edges in declaration order, so the
    successors of a selector are indexed by the order in which the tasks
    that depend on it are declared. A condition has exactly two dependents:
    the first runs when it evaluates to false, the second when true.

Expressions are not evaluated at build time. Work closures evaluate them
each time the node runs, with these variables in scope:

	run       completed runs of the owning graph
	graph     graph name
	task      task name
	argument  evaluated `argument` of a dynamic task

The handler context comes from Plan.Bind, so the caller decides which logger
and output writer a run uses.
*/
package builder
