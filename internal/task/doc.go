// Package task implements asynchronous task dispatch: the task state machine,
// the handler registry, the broker that accepts submissions and answers
// status polls, and the runner whose workers execute queued tasks.
//
// Submissions are written to a TaskStore before they are placed on a Queue,
// so a persistent store can recover pending work after a restart. Workers
// publish every state change back to the store; clients only ever learn about
// progress by polling it.
package task
