/*
Package host is a real-time audio plugin host engine.

Concept

The engine is split between two goroutines:

    Control - owns the graph, creates and activates plugins, compiles schedules;
    Audio - runs the current schedule for every cycle of the audio device.

The audio goroutine never blocks on the control goroutine and never frees
memory. Everything it references is counted and reclaimed later by the
collector on the control goroutine.

Graph

Plugins are connected with channel-level audio edges and note or
automation edges. Every change of the graph is compiled into a schedule: an
ordered list of plugin and sum tasks with pre-allocated buffers. Inputs
with several edges are merged by sum tasks, unconnected inputs read a
constant silent buffer.

Schedules are versioned. A plugin activated for version N outputs silence
until a schedule of version N arrives, so the audio goroutine picks up new
plugins only with the schedule that wires them.

Plugins

Every plugin instance is driven by a processor with its own state machine.
It starts the plugin lazily, stops it when inputs are quiet and the plugin
reported that it doesn't need to run, and crossfades output when bypass is
toggled. Plugins are removed with a handshake: the control goroutine
requests a drop, the audio goroutine stops the plugin and marks it ready to
deactivate, the control goroutine deactivates it on the next idle timer.

Timers

The control goroutine must call Engine.OnTimer no later than the returned
instant. It handles idle maintenance, collection passes and plugin timers.
Engine.Run does that with a real-time clock, offline drivers call OnTimer
with the clock of rendered frames.

Drivers

Package wav renders files offline and package portaudio plays the graph
through the default device.
*/
package host
