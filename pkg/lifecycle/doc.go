/*
Package lifecycle implements the service state machine described in the
pool container design: every service moves strictly forward through
Uninitialized -> Initialized -> Running -> Terminated, with Error reachable
from any step.

Concrete services embed Base for the Name/State bookkeeping and implement
Initialize, Run and Terminate. Start and Stop are the only code that may
advance a service's state; they flip the state field before invoking the
corresponding step, so a Run method that loops on svc.State() == StateRunning
exits cleanly the instant Stop sets state to Terminated.
*/
package lifecycle
