package chat

// chatPageHTML is the embedded browser client. It speaks the JSON event
// protocol: join on connect, then message/typing/idle frames.
const chatPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 700px; }
        #messages {
            border: 1px solid #ccc;
            height: 360px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #messages div { margin: 4px 0; }
        .system { color: gray; font-style: italic; }
        .error { color: #b00020; }
        .me { color: #005a87; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        #typing { min-height: 1.2em; color: gray; font-size: 0.9em; }
        #status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Chat</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <div id="online"></div>

    <div id="joinForm">
        <input type="text" id="usernameInput" placeholder="Pick a username..." maxlength="20">
        <button onclick="join()">Join</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." maxlength="500" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let myName = null;
        let typingTimer = null;
        let idleTimer = null;
        const typers = new Set();

        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const usernameInput = document.getElementById('usernameInput');
        const statusDiv = document.getElementById('status');
        const typingDiv = document.getElementById('typing');
        const onlineDiv = document.getElementById('online');

        function addLine(text, cls) {
            const el = document.createElement('div');
            if (cls) el.className = cls;
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function setConnected(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
        }

        function connect(name) {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(proto + location.host + '/ws');

            ws.onopen = function() {
                ws.send(JSON.stringify({type: 'join', username: name}));
            };

            ws.onmessage = function(event) {
                for (const line of event.data.split('\n')) {
                    if (line) handleEvent(JSON.parse(line));
                }
            };

            ws.onclose = function() {
                setConnected(false);
                addLine('Connection closed', 'system');
                ws = null;
            };
        }

        function handleEvent(ev) {
            switch (ev.type) {
            case 'userJoined':
                onlineDiv.textContent = ev.onlineCount + ' online';
                if (ev.username === myName) setConnected(true);
                addLine(ev.username + ' joined', 'system');
                break;
            case 'userLeft':
                onlineDiv.textContent = ev.onlineCount + ' online';
                typers.delete(ev.username);
                renderTyping();
                addLine(ev.username + ' left', 'system');
                break;
            case 'message':
                typers.delete(ev.username);
                renderTyping();
                addLine(ev.username + ': ' + ev.text, ev.username === myName ? 'me' : '');
                break;
            case 'userTyping':
                if (ev.typing) typers.add(ev.username); else typers.delete(ev.username);
                renderTyping();
                break;
            case 'error':
                addLine(ev.message, 'error');
                break;
            }
        }

        function renderTyping() {
            typingDiv.textContent = typers.size
                ? Array.from(typers).join(', ') + (typers.size > 1 ? ' are typing...' : ' is typing...')
                : '';
        }

        function join() {
            const name = usernameInput.value.trim();
            if (!name) return;
            myName = name;
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'join', username: name}));
            } else {
                connect(name);
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text || !ws || ws.readyState !== WebSocket.OPEN) return;
            ws.send(JSON.stringify({type: 'message', text: text}));
            ws.send(JSON.stringify({type: 'typing', typing: false}));
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); return; }
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'typing', typing: true}));
                clearTimeout(typingTimer);
                typingTimer = setTimeout(function() {
                    ws.send(JSON.stringify({type: 'typing', typing: false}));
                }, 2000);
            }
        });

        usernameInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') join();
        });

        function markActive() {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            ws.send(JSON.stringify({type: 'idle', state: 'active'}));
            clearTimeout(idleTimer);
            idleTimer = setTimeout(function() {
                if (ws && ws.readyState === WebSocket.OPEN) {
                    ws.send(JSON.stringify({type: 'idle', state: 'idle'}));
                }
            }, 5 * 60 * 1000);
        }

        document.addEventListener('mousemove', throttle(markActive, 30000));
        document.addEventListener('keydown', throttle(markActive, 30000));

        function throttle(fn, ms) {
            let last = 0;
            return function() {
                const now = Date.now();
                if (now - last > ms) { last = now; fn(); }
            };
        }
    </script>
</body>
</html>`
