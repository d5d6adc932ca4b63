package send

// send runs the whole pipeline for one process invocation: parse the command
// line, load the optional config file, build the message and hand it to the
// relay, then report. It maps every failure to the process exit status so
// main stays a thin wrapper.
