package report

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #f5f5f5;
            padding: 20px;
        }
        .container {
            max-width: 1100px;
            margin: 0 auto;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 20px;
        }
        .header h1 {
            font-size: 2em;
            margin-bottom: 10px;
        }
        .header .subtitle {
            opacity: 0.9;
        }
        .card {
            background: white;
            border-radius: 10px;
            padding: 20px;
            margin-bottom: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        .card h2 {
            color: #667eea;
            margin-bottom: 15px;
            padding-bottom: 10px;
            border-bottom: 2px solid #f0f0f0;
        }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(130px, 1fr));
            gap: 15px;
        }
        .stat-box {
            background: #f8f9fa;
            padding: 20px;
            border-radius: 8px;
            text-align: center;
        }
        .stat-box .value {
            font-size: 1.8em;
            font-weight: bold;
        }
        .stat-box .label {
            color: #777;
            font-size: 0.85em;
            text-transform: uppercase;
        }
        table {
            width: 100%;
            border-collapse: collapse;
        }
        th, td {
            text-align: left;
            padding: 10px 12px;
            border-bottom: 1px solid #f0f0f0;
            vertical-align: top;
        }
        th {
            color: #777;
            font-size: 0.85em;
            text-transform: uppercase;
        }
        .status {
            display: inline-block;
            padding: 2px 10px;
            border-radius: 12px;
            font-size: 0.85em;
            font-weight: bold;
        }
        .status.passed { background: #e6f4ea; color: #1e7e34; }
        .status.failed { background: #fdecea; color: #c0392b; }
        .status.errored { background: #fdecea; color: #c0392b; }
        .status.skipped { background: #f0f0f0; color: #777; }
        .status.neutral { background: #f0f0f0; color: #555; }
        .errors {
            color: #c0392b;
            font-size: 0.9em;
        }
        .errors li { margin-left: 18px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <div class="subtitle">Agent {{.AgentID}} &middot; {{.SuiteName}}</div>
            <div class="subtitle">Run {{.RunID}} &middot; generated {{.GeneratedAt}}</div>
        </div>

        <div class="card">
            <h2>Summary <span class="status {{.StatusCls}}">{{.Status}}</span></h2>
            <div class="stats-grid">
                <div class="stat-box"><div class="value">{{.Total}}</div><div class="label">Total</div></div>
                <div class="stat-box"><div class="value">{{.Passed}}</div><div class="label">Passed</div></div>
                <div class="stat-box"><div class="value">{{.Failed}}</div><div class="label">Failed</div></div>
                <div class="stat-box"><div class="value">{{.Errored}}</div><div class="label">Errors</div></div>
                <div class="stat-box"><div class="value">{{.Skipped}}</div><div class="label">Skipped</div></div>
            </div>
        </div>

        <div class="card">
            <h2>Results</h2>
            <table>
                <tr><th>Test Case</th><th>Status</th><th>Duration</th><th>Notes</th></tr>
                {{range .Results}}
                <tr>
                    <td>{{.CaseName}}</td>
                    <td><span class="status {{.StatusCls}}">{{.Status}}</span></td>
                    <td>{{.DurationMS}}</td>
                    <td>{{if .Errors}}<ul class="errors">{{range .Errors}}<li>{{.}}</li>{{end}}</ul>{{end}}</td>
                </tr>
                {{end}}
            </table>
        </div>
    </div>
</body>
</html>
`
